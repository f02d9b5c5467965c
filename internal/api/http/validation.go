package http

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/bundle/manifest"
)

// validateID checks an app or viewer ID taken from the URL. Imported
// manifests pass the same rules, so every listed app can be addressed.
func validateID(value, field string) error {
	return validation.Errors{
		field: validation.Validate(value, manifest.IDRules()...),
	}.Filter()
}

// openBody is the JSON body of an inline open.
type openBody struct {
	Title     string `json:"title"`
	EntryPath string `json:"entry_path"`
	Markup    string `json:"markup"`
	Style     string `json:"style"`
	Script    string `json:"script"`
}

func (b openBody) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.Title, validation.Length(0, 256)),
		validation.Field(&b.EntryPath, validation.Length(0, 1024)),
		validation.Field(&b.Markup, validation.Length(0, maxInlineBytes)),
		validation.Field(&b.Style, validation.Length(0, maxInlineBytes)),
		validation.Field(&b.Script, validation.Length(0, maxInlineBytes)),
	)
}

func (b openBody) inline() bool {
	return b.Markup != "" || b.Style != "" || b.Script != ""
}

const maxInlineBytes = 4 << 20
