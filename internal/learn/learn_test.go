package learn

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odavlstudio/verax/internal/model"
)

func defaultConfig() Config {
	return Config{
		InScopeExtensions: []string{".jsx", ".tsx", ".js", ".ts"},
	}
}

func writeSrc(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestExtractLiteralHref(t *testing.T) {
	root := t.TempDir()
	writeSrc(t, root, "App.jsx", `export default () => <a href="/dashboard">Go</a>;`)

	res, err := Extract(root, defaultConfig())
	require.NoError(t, err)
	require.Len(t, res.Expectations, 1)
	require.Equal(t, model.ExpectationNavigation, res.Expectations[0].Type)
	require.Equal(t, "/dashboard", res.Expectations[0].Promise.Value)
}

func TestExtractSkipsDynamicHref(t *testing.T) {
	root := t.TempDir()
	writeSrc(t, root, "App.jsx", `export default () => <a href={`+"`/item/${id}`"+`}>Go</a>;`)

	res, err := Extract(root, defaultConfig())
	require.NoError(t, err)
	require.Empty(t, res.Expectations)
	require.Equal(t, 1, res.Skipped.Dynamic)
}

func TestExtractLiteralNavigateCall(t *testing.T) {
	root := t.TempDir()
	writeSrc(t, root, "App.tsx", `function onClick() { navigate('/checkout'); }`)

	res, err := Extract(root, defaultConfig())
	require.NoError(t, err)
	require.Len(t, res.Expectations, 1)
	require.Equal(t, "/checkout", res.Expectations[0].Promise.Value)
}

func TestExtractAbsoluteFetchURL(t *testing.T) {
	root := t.TempDir()
	writeSrc(t, root, "api.ts", `fetch('https://api.example.com/v1/orders')`)

	res, err := Extract(root, defaultConfig())
	require.NoError(t, err)
	require.Len(t, res.Expectations, 1)
	require.Equal(t, model.ExpectationNetwork, res.Expectations[0].Type)
}

func TestExtractStateSetterRequiresJSXUsage(t *testing.T) {
	root := t.TempDir()
	writeSrc(t, root, "Form.jsx", `
function Form() {
  const [open, setOpen] = useState(false);
  return <button onClick={setOpen}>toggle</button>;
}
`)
	res, err := Extract(root, defaultConfig())
	require.NoError(t, err)
	require.Len(t, res.Expectations, 1)
	require.Equal(t, model.ExpectationState, res.Expectations[0].Type)
}

func TestExtractIsolatedSetterIsDiscarded(t *testing.T) {
	root := t.TempDir()
	writeSrc(t, root, "Form.jsx", `
function Form() {
  const [open, setOpen] = useState(false);
  return <div>static</div>;
}
`)
	res, err := Extract(root, defaultConfig())
	require.NoError(t, err)
	require.Empty(t, res.Expectations)
	require.Equal(t, 1, res.Skipped.Dynamic)
}

func TestExtractSkipsNodeModules(t *testing.T) {
	root := t.TempDir()
	writeSrc(t, root, "node_modules/pkg/index.jsx", `<a href="/ignored">x</a>`)
	writeSrc(t, root, "App.jsx", `<a href="/kept">x</a>`)

	res, err := Extract(root, defaultConfig())
	require.NoError(t, err)
	require.Len(t, res.Expectations, 1)
	require.Equal(t, "/kept", res.Expectations[0].Promise.Value)
}

func TestExtractIsDeterministicallySorted(t *testing.T) {
	root := t.TempDir()
	writeSrc(t, root, "b.jsx", `<a href="/b">x</a>`)
	writeSrc(t, root, "a.jsx", `<a href="/a">x</a>`)

	res, err := Extract(root, defaultConfig())
	require.NoError(t, err)
	require.Len(t, res.Expectations, 2)
	require.Equal(t, "a.jsx", res.Expectations[0].Source.File)
	require.Equal(t, "b.jsx", res.Expectations[1].Source.File)
}

func TestExtractIDsAreStable(t *testing.T) {
	root := t.TempDir()
	writeSrc(t, root, "App.jsx", `<a href="/dashboard">Go</a>`)

	res1, err := Extract(root, defaultConfig())
	require.NoError(t, err)
	res2, err := Extract(root, defaultConfig())
	require.NoError(t, err)
	require.Equal(t, res1.Expectations[0].ID, res2.Expectations[0].ID)
}
