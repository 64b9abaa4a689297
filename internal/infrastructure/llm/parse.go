package llm

import (
	"fmt"
	"strings"

	"pagesmith/internal/domain/entity"
)

// extractFilesFromContent splits a fenced-block LLM response into site files.
// Each fence is expected to carry the filename on the fence line.
func extractFilesFromContent(content string) []*entity.SiteFile {
	var files []*entity.SiteFile

	lines := strings.Split(content, "\n")
	var currentFile *entity.SiteFile
	var inCodeBlock bool

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") {
			if inCodeBlock && currentFile != nil {
				files = append(files, currentFile)
				currentFile = nil
			} else {
				fileName := strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
				if fileName == "" {
					fileName = "index.html"
				}

				currentFile = &entity.SiteFile{
					Name:     fileName,
					Content:  "",
					Type:     detectFileType(fileName),
					HasError: false,
					ErrorMsg: nil,
				}
			}
			inCodeBlock = !inCodeBlock
			continue
		}

		if inCodeBlock && currentFile != nil {
			if currentFile.Content != "" {
				currentFile.Content += "\n"
			}
			currentFile.Content += line
		}
	}

	if currentFile != nil {
		files = append(files, currentFile)
	}

	return files
}

func detectFileType(fileName string) string {
	fileName = strings.ToLower(fileName)

	switch {
	case strings.HasSuffix(fileName, ".html") || strings.HasSuffix(fileName, ".htm"):
		return "html"
	case strings.HasSuffix(fileName, ".js") || strings.HasSuffix(fileName, ".mjs"):
		return "script"
	case strings.HasSuffix(fileName, ".css"):
		return "style"
	case strings.HasSuffix(fileName, ".md"):
		return "markdown"
	case strings.HasSuffix(fileName, ".json") || strings.HasSuffix(fileName, ".csv") || strings.HasSuffix(fileName, ".txt"):
		return "data"
	}

	return "asset"
}

// buildUserPrompt assembles the per-round instruction sent after the system
// prompt. Round >= 2 includes the previously published README so the model
// revises instead of starting over.
func buildUserPrompt(input entity.GenerationInput) string {
	var b strings.Builder

	if input.Round >= 2 {
		b.WriteString(fmt.Sprintf("Revision round %d.\n\n", input.Round))
		if input.PrevReadme != "" {
			b.WriteString("Current README.md of the published app:\n")
			b.WriteString(input.PrevReadme)
			b.WriteString("\n\n")
		}
		b.WriteString("Revision brief:\n")
	} else {
		b.WriteString("Build brief:\n")
	}
	b.WriteString(input.Brief)

	if len(input.Checks) > 0 {
		b.WriteString("\n\nThe app must pass these checks:\n")
		for _, c := range input.Checks {
			b.WriteString("- ")
			b.WriteString(c)
			b.WriteString("\n")
		}
	}

	if len(input.AttachmentNames) > 0 {
		b.WriteString("\nAttachments committed alongside the app (reference by name):\n")
		for _, name := range input.AttachmentNames {
			b.WriteString("- ")
			b.WriteString(name)
			b.WriteString("\n")
		}
	}

	return b.String()
}
