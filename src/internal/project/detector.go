package project

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"lsp-indexer/src/internal/constants"
)

// maxDetectDepth limits how deep detection walks below the root
const maxDetectDepth = 3

// DetectedLanguage represents a detected language with its confidence score
type DetectedLanguage struct {
	Language   string
	Confidence int
	Indicators []string
}

// markerFiles are build files that identify a project's language
var markerFiles = map[string]struct {
	language   string
	confidence int
}{
	"go.mod":                {"go", 25},
	"go.sum":                {"go", 15},
	"tsconfig.json":         {"typescript", 30},
	"setup.py":              {"python", 25},
	"requirements.txt":      {"python", 20},
	"pyproject.toml":        {"python", 20},
	"pom.xml":               {"java", 30},
	"build.gradle":          {"java", 25},
	"build.gradle.kts":      {"java", 25},
	"Cargo.toml":            {"rust", 30},
	"Cargo.lock":            {"rust", 15},
	"CMakeLists.txt":        {"cpp", 25},
	"compile_commands.json": {"cpp", 30},
	"meson.build":           {"cpp", 20},
}

var extensionLanguages = func() map[string]string {
	m := make(map[string]string)
	for lang, exts := range constants.SupportedExtensions {
		// clangd serves both, so C sources count toward cpp
		if lang == "c" {
			lang = "cpp"
		}
		for _, ext := range exts {
			m[ext] = lang
		}
	}
	return m
}()

// DetectLanguages walks root, honoring its .gitignore and the scan
// deny-list, and scores the languages it finds. Results are ordered by
// confidence, highest first.
func DetectLanguages(root string) ([]DetectedLanguage, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("directory does not exist: %s", absRoot)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", absRoot)
	}

	gi, _ := ignore.CompileIgnoreFile(filepath.Join(absRoot, ".gitignore"))

	detected := make(map[string]*DetectedLanguage)
	err = filepath.WalkDir(absRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == absRoot {
				return err
			}
			return nil
		}
		if p == absRoot {
			return nil
		}
		rel, _ := filepath.Rel(absRoot, p)
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			name := d.Name()
			if strings.HasPrefix(name, ".") || constants.SkipDirectories[name] {
				return fs.SkipDir
			}
			if gi != nil && gi.MatchesPath(rel+"/") {
				return fs.SkipDir
			}
			if strings.Count(rel, "/") >= maxDetectDepth-1 {
				return fs.SkipDir
			}
			return nil
		}
		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		analyzeFile(p, detected)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	out := make([]DetectedLanguage, 0, len(detected))
	for _, d := range detected {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Language < out[j].Language
	})
	return out, nil
}

// analyzeFile analyzes a single file and updates detection results
func analyzeFile(p string, detected map[string]*DetectedLanguage) {
	name := filepath.Base(p)
	ext := strings.ToLower(filepath.Ext(name))

	if lang, ok := extensionLanguages[ext]; ok {
		addDetection(detected, lang, 10, fmt.Sprintf("*%s file: %s", ext, name))
	}
	if m, ok := markerFiles[name]; ok {
		addDetection(detected, m.language, m.confidence, name+" file")
	}
	if name == "package.json" {
		if _, err := os.Stat(filepath.Join(filepath.Dir(p), "tsconfig.json")); err == nil {
			addDetection(detected, "typescript", 25, "package.json with tsconfig.json")
		} else {
			addDetection(detected, "javascript", 25, "package.json file")
		}
	}
}

// addDetection adds or updates a language detection
func addDetection(detected map[string]*DetectedLanguage, language string, confidence int, indicator string) {
	if existing, ok := detected[language]; ok {
		existing.Confidence += confidence
		existing.Indicators = append(existing.Indicators, indicator)
		return
	}
	detected[language] = &DetectedLanguage{
		Language:   language,
		Confidence: confidence,
		Indicators: []string{indicator},
	}
}

// DetectPrimaryLanguage returns the highest scoring language under root
// that usable accepts. A nil usable accepts every language.
func DetectPrimaryLanguage(root string, usable func(string) bool) (string, error) {
	detected, err := DetectLanguages(root)
	if err != nil {
		return "", err
	}
	for _, d := range detected {
		if usable == nil || usable(d.Language) {
			return d.Language, nil
		}
	}
	if len(detected) == 0 {
		return "", fmt.Errorf("no source files detected in %s", root)
	}
	return "", fmt.Errorf("no configured server for the languages detected in %s", root)
}
