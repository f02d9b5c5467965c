package catalog

import "github.com/GriffinCanCode/AgentOS/apphost/internal/bundle/manifest"

func icon(color, glyph string) string {
	return "data:image/svg+xml;utf8," +
		"<svg xmlns='http://www.w3.org/2000/svg' width='64' height='64'>" +
		"<rect width='64' height='64' rx='12' fill='%23" + color + "'/>" +
		"<text x='32' y='42' font-size='28' text-anchor='middle' fill='white'>" + glyph + "</text></svg>"
}

// Builtins are the apps shipped with the host. Their files live under
// <apps dir>/<id>/.
func Builtins() []manifest.Manifest {
	return []manifest.Manifest{
		{
			ID:          "markdown-notes",
			Name:        "Markdown Notes",
			Version:     "1.2.0",
			Description: "A lightweight markdown note taker with live preview and local storage.",
			Author:      "Acme Co.",
			Tags:        []string{"productivity", "notes"},
			Icon:        icon("3178c6", "M"),
		},
		{
			ID:          "image-toolbox",
			Name:        "Image Toolbox",
			Version:     "0.9.3",
			Description: "Batch compress, crop and convert images, with drag and drop support.",
			Author:      "Pixel Labs",
			Tags:        []string{"image", "tools"},
			Icon:        icon("e67e22", "I"),
		},
		{
			ID:          "dev-helper",
			Name:        "Dev Helper",
			Version:     "2.0.1",
			Description: "Everyday developer utilities: JSON formatting, Base64 and hashing.",
			Author:      "Tooling Inc.",
			Tags:        []string{"developer", "utility"},
			Icon:        icon("2ecc71", "D"),
		},
		{
			ID:          "music-player",
			Name:        "Music Player",
			Version:     "0.5.0",
			Description: "A minimal local music player with playlists and lyrics.",
			Author:      "Sonic Team",
			Tags:        []string{"music", "player"},
			Icon:        icon("9b59b6", "♪"),
		},
	}
}
