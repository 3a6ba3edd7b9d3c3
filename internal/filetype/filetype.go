// Package filetype maps file extensions onto coarse type categories and holds
// the per-type vocabulary the heuristic matcher compares against folder names.
package filetype

import "strings"

// Type is a coarse file category derived from the extension.
type Type string

const (
	Document     Type = "document"
	Spreadsheet  Type = "spreadsheet"
	Presentation Type = "presentation"
	Image        Type = "image"
	Video        Type = "video"
	Audio        Type = "audio"
	Archive      Type = "archive"
	Code         Type = "code"
	Text         Type = "text"
	Ebook        Type = "ebook"
	Design       Type = "design"
	Font         Type = "font"
	Other        Type = "other"
)

var extensionTypes = map[Type][]string{
	Document:     {"pdf", "doc", "docx", "odt", "rtf", "pages", "wpd"},
	Spreadsheet:  {"xls", "xlsx", "ods", "csv", "numbers", "tsv"},
	Presentation: {"ppt", "pptx", "odp", "key"},
	Image:        {"jpg", "jpeg", "png", "gif", "bmp", "tiff", "tif", "webp", "heic", "heif", "raw", "cr2", "nef", "svg", "ico"},
	Video:        {"mp4", "mkv", "mov", "avi", "wmv", "webm", "m4v", "flv", "mpg", "mpeg"},
	Audio:        {"mp3", "wav", "flac", "aac", "ogg", "m4a", "wma", "opus", "aiff"},
	Archive:      {"zip", "rar", "7z", "tar", "gz", "bz2", "xz", "tgz", "dmg", "iso"},
	Code:         {"go", "py", "js", "ts", "java", "c", "cpp", "h", "rs", "rb", "php", "swift", "kt", "sh", "html", "css", "json", "yaml", "yml", "xml", "sql", "toml"},
	Text:         {"txt", "md", "markdown", "log", "rst"},
	Ebook:        {"epub", "mobi", "azw", "azw3", "fb2"},
	Design:       {"psd", "ai", "sketch", "fig", "xd", "indd", "eps"},
	Font:         {"ttf", "otf", "woff", "woff2"},
}

var typeKeywords = map[Type][]string{
	Document:     {"document", "documents", "docs", "paperwork", "records", "papers", "contracts", "letters", "forms"},
	Spreadsheet:  {"spreadsheet", "spreadsheets", "finance", "budget", "accounts", "data", "reports"},
	Presentation: {"presentation", "presentations", "slides", "decks", "talks"},
	Image:        {"image", "images", "photo", "photos", "pictures", "screenshots", "camera", "gallery"},
	Video:        {"video", "videos", "movies", "films", "recordings", "clips"},
	Audio:        {"audio", "music", "songs", "podcasts", "recordings", "voice"},
	Archive:      {"archive", "archives", "backup", "backups", "compressed"},
	Code:         {"code", "source", "projects", "scripts", "development", "dev"},
	Text:         {"notes", "text", "journal", "logs", "writing"},
	Ebook:        {"ebook", "ebooks", "books", "library", "reading"},
	Design:       {"design", "designs", "artwork", "mockups", "assets"},
	Font:         {"font", "fonts", "typography"},
}

var byExtension = func() map[string]Type {
	out := make(map[string]Type)
	for typ, exts := range extensionTypes {
		for _, ext := range exts {
			out[ext] = typ
		}
	}
	return out
}()

// Normalize lower-cases an extension and strips the leading dot.
func Normalize(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// Classify returns the type category for ext; unknown extensions are Other.
func Classify(ext string) Type {
	if typ, ok := byExtension[Normalize(ext)]; ok {
		return typ
	}
	return Other
}

// Keywords returns the vocabulary associated with typ.
func Keywords(typ Type) []string {
	return typeKeywords[typ]
}

// Extensions returns the extensions that classify as typ.
func Extensions(typ Type) []string {
	return extensionTypes[typ]
}

// Allowed reports whether a file with the given extension passes an allow-list
// of type names and/or extensions. An empty list allows everything.
func Allowed(allow []string, ext string) bool {
	if len(allow) == 0 {
		return true
	}
	ext = Normalize(ext)
	typ := Classify(ext)
	for _, entry := range allow {
		entry = Normalize(entry)
		if entry == "" {
			continue
		}
		if entry == ext || Type(entry) == typ {
			return true
		}
	}
	return false
}
