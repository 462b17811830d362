package recordservice

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/starford/moodlog/internal/apperr"
)

// attachmentKinds maps the extensions accepted from untrusted sources to the
// MIME type stored with the file.
var attachmentKinds = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".pdf":  "application/pdf",
}

// canonicalExt picks one extension per MIME type for generated names.
var canonicalExt = map[string]string{
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"image/svg+xml":   ".svg",
	"application/pdf": ".pdf",
}

// AttachmentKind returns the MIME type of an accepted extension.
func AttachmentKind(ext string) (string, bool) {
	mime, ok := attachmentKinds[strings.ToLower(ext)]
	return mime, ok
}

// AttachmentExtension returns the extension used for files of an accepted
// MIME type. Parameters such as "; charset=" are ignored.
func AttachmentExtension(mime string) (string, bool) {
	base, _, _ := strings.Cut(mime, ";")
	ext, ok := canonicalExt[strings.ToLower(strings.TrimSpace(base))]
	return ext, ok
}

// AttachmentExtensions lists the accepted extensions in order.
func AttachmentExtensions() []string {
	out := make([]string, 0, len(attachmentKinds))
	for ext := range attachmentKinds {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// CheckAttachment verifies that data is of the kind its extension claims.
func CheckAttachment(data []byte, ext string) error {
	want, ok := AttachmentKind(ext)
	if !ok {
		return apperr.Invalid("file", fmt.Sprintf("unsupported file type %q (allowed: %s)",
			ext, strings.Join(AttachmentExtensions(), ", ")))
	}
	if want == "image/svg+xml" {
		head := data[:min(len(data), 1024)]
		if !bytes.Contains(head, []byte("<svg")) {
			return apperr.Invalid("file", "content is not an SVG document")
		}
		return nil
	}
	got, _, _ := strings.Cut(http.DetectContentType(data), ";")
	if got != want {
		return apperr.Invalid("file", fmt.Sprintf("content is %s, not %s", got, want))
	}
	return nil
}
