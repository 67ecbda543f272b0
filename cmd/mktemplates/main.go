// Command mktemplates writes the docx template assets the renderer
// loads at request time. Run it once per deploy against the configured
// templates directory.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fumiama/go-docx"

	"docsmith/internal/templates"
)

func main() {
	dir := flag.String("dir", "./templates", "directory to write template assets into")
	flag.Parse()

	if err := os.MkdirAll(*dir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create %s: %v\n", *dir, err)
		os.Exit(1)
	}

	registry := templates.Default()
	for _, kind := range registry.Kinds() {
		tpl, _ := registry.Get(kind)
		path := filepath.Join(*dir, tpl.Asset)
		if err := writeAsset(path, tpl); err != nil {
			fmt.Fprintf(os.Stderr, "write %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Println("wrote", path)
	}
}

func writeAsset(path string, tpl *templates.Template) error {
	doc := docx.New().WithDefaultTheme()

	doc.AddParagraph().AddText("{title}").Bold()
	doc.AddParagraph().AddText("Classification: {classification}")
	doc.AddParagraph().AddText("Generated: {generated_date}")
	doc.AddParagraph()

	for _, s := range tpl.Sections {
		doc.AddParagraph().AddText(s.Name).Bold()
		doc.AddParagraph().AddText("{" + s.Key + "}")
		if tpl.HasSteps && s.Key == "steps_content" {
			doc.AddParagraph().AddText("{steps}")
		}
		doc.AddParagraph()
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := doc.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
