package chatlog

import (
	"embed"
	"strings"

	"github.com/aymerick/raymond"
)

//go:embed templates/*.hbs
var templateFiles embed.FS

var templates = map[string]*raymond.Template{}

func init() {
	raymond.RegisterHelper("inc", func(index int) int {
		return index + 1
	})

	raymond.RegisterHelper("join", func(items []string, separator string) string {
		return strings.Join(items, separator)
	})

	entries, err := templateFiles.ReadDir("templates")

	if err != nil {
		panic(err)
	}

	for _, entry := range entries {
		source, err := templateFiles.ReadFile("templates/" + entry.Name())

		if err != nil {
			panic(err)
		}

		templates[strings.TrimSuffix(entry.Name(), ".hbs")] = raymond.MustParse(string(source))
	}
}

func render(name string, ctx map[string]interface{}) (string, error) {
	tpl, ok := templates[name]

	if !ok {
		return "", ErrUnknownTemplate
	}

	contents, err := tpl.Exec(ctx)

	if err != nil {
		return "", err
	}

	return strings.TrimSpace(contents), nil
}
