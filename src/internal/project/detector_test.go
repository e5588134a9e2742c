package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
}

func TestDetectLanguages(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"go.mod":         "module x\n",
		"main.go":        "package main\n",
		"pkg/util.go":    "package pkg\n",
		"scripts/gen.py": "print(1)\n",
	})

	langs, err := DetectLanguages(root)
	require.NoError(t, err)
	require.Len(t, langs, 2)
	assert.Equal(t, "go", langs[0].Language)
	assert.Equal(t, 45, langs[0].Confidence)
	assert.Contains(t, langs[0].Indicators, "go.mod file")
	assert.Equal(t, "python", langs[1].Language)
}

func TestDetectLanguagesSkipsIgnoredAndDeepFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		".gitignore":              "generated/\n",
		"a.rs":                    "fn main() {}\n",
		"generated/x.go":          "package x\n",
		"node_modules/m/index.js": "1\n",
		".hidden/y.go":            "package y\n",
		"a/b/c/deep.go":           "package deep\n",
	})

	langs, err := DetectLanguages(root)
	require.NoError(t, err)
	require.Len(t, langs, 1)
	assert.Equal(t, "rust", langs[0].Language)
}

func TestDetectLanguagesCountsCAsCpp(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.c":         "int main(void) { return 0; }\n",
		"CMakeLists.txt": "project(x)\n",
		"package.json":   "{}\n",
	})

	langs, err := DetectLanguages(root)
	require.NoError(t, err)
	require.Len(t, langs, 2)
	assert.Equal(t, "cpp", langs[0].Language)
	assert.Equal(t, 35, langs[0].Confidence)
	assert.Equal(t, "javascript", langs[1].Language)
}

func TestDetectLanguagesPackageJSONWithTsconfig(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"package.json":  "{}\n",
		"tsconfig.json": "{}\n",
	})

	langs, err := DetectLanguages(root)
	require.NoError(t, err)
	require.Len(t, langs, 1)
	assert.Equal(t, "typescript", langs[0].Language)
	assert.Equal(t, 55, langs[0].Confidence)
}

func TestDetectPrimaryLanguage(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"Cargo.toml": "[package]\n",
		"lib.rs":     "\n",
		"tool.py":    "\n",
	})

	lang, err := DetectPrimaryLanguage(root, nil)
	require.NoError(t, err)
	assert.Equal(t, "rust", lang)

	lang, err = DetectPrimaryLanguage(root, func(l string) bool { return l == "python" })
	require.NoError(t, err)
	assert.Equal(t, "python", lang)

	_, err = DetectPrimaryLanguage(root, func(string) bool { return false })
	assert.ErrorContains(t, err, "no configured server")

	_, err = DetectPrimaryLanguage(t.TempDir(), nil)
	assert.ErrorContains(t, err, "no source files")

	_, err = DetectPrimaryLanguage(filepath.Join(root, "missing"), nil)
	assert.Error(t, err)
}
