package validator

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"pagesmith/internal/domain/entity"
)

type AnalysisResult struct {
	Passed bool
	Errors []*entity.ValidationError
}

// SensitiveKeywords flag generated output that looks like it leaked a
// credential instead of using a placeholder.
var SensitiveKeywords = []string{"api_key", "apikey", "secret", "token", "password", "access_key"}

type Analyzer interface {
	Analyze(files []*entity.SiteFile, secrets []string) (*AnalysisResult, error)
}

// SiteAnalyzer statically checks a generated static app before it is
// published: the entry point must exist, HTML must parse, and no known
// secret value may appear in any file.
type SiteAnalyzer struct{}

func NewSiteAnalyzer() *SiteAnalyzer {
	return &SiteAnalyzer{}
}

func (a *SiteAnalyzer) Analyze(files []*entity.SiteFile, secrets []string) (*AnalysisResult, error) {
	result := &AnalysisResult{Passed: true}

	hasIndex := false
	for _, file := range files {
		if file.Name == "index.html" {
			hasIndex = true
		}

		if file.Type == "html" {
			if err := a.analyzeHTML(file, result); err != nil {
				return nil, err
			}
		}

		a.scanForSecrets(file, secrets, result)
	}

	if !hasIndex {
		result.Passed = false
		result.Errors = append(result.Errors, &entity.ValidationError{
			File:    "index.html",
			Message: "generated site has no index.html entry point",
		})
	}

	return result, nil
}

func (a *SiteAnalyzer) analyzeHTML(file *entity.SiteFile, result *AnalysisResult) error {
	// html.Parse recovers from almost anything, so a hard error here means
	// the content is not remotely HTML.
	doc, err := html.Parse(strings.NewReader(file.Content))
	if err != nil {
		result.Passed = false
		result.Errors = append(result.Errors, &entity.ValidationError{
			File:    file.Name,
			Message: fmt.Sprintf("unparseable HTML: %s", err),
		})
		return nil
	}

	if file.Name == "index.html" && !hasElement(doc, "body") {
		result.Passed = false
		result.Errors = append(result.Errors, &entity.ValidationError{
			File:    file.Name,
			Message: "index.html has no body element",
		})
	}

	return nil
}

func (a *SiteAnalyzer) scanForSecrets(file *entity.SiteFile, secrets []string, result *AnalysisResult) {
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		if strings.Contains(file.Content, secret) {
			result.Passed = false
			result.Errors = append(result.Errors, &entity.ValidationError{
				File:    file.Name,
				Message: "generated file contains a configured secret value",
			})
			return
		}
	}

	lower := strings.ToLower(file.Content)
	for _, kw := range SensitiveKeywords {
		needle := kw + " = \""
		alt := kw + "=\""
		if strings.Contains(lower, needle) || strings.Contains(lower, alt) {
			result.Errors = append(result.Errors, &entity.ValidationError{
				File:    file.Name,
				Message: fmt.Sprintf("possible hardcoded credential near %q", kw),
			})
			return
		}
	}
}

func hasElement(n *html.Node, name string) bool {
	if n.Type == html.ElementNode && n.Data == name {
		return true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if hasElement(c, name) {
			return true
		}
	}
	return false
}
