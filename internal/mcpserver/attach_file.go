package mcpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/moodlog/internal/recordservice"
)

const maxRedirects = 5

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

type attachResult struct {
	FileID        int64  `json:"fileId"`
	URL           string `json:"url"`
	MarkdownImage string `json:"markdownImage"`
}

// payload is attachment content taken from a data URI or a download.
type payload struct {
	data []byte
	mime string // as declared by the source, may be empty
	name string // suggested by the source, may be empty
}

// fetcher reads attachment sources with a size cap. Remote downloads only
// connect to addresses accepted by allow.
type fetcher struct {
	limit  int64
	allow  func(net.IP) error
	client *http.Client
}

func newFetcher(limit int64, allow func(net.IP) error) *fetcher {
	f := &fetcher{limit: limit, allow: allow}
	dialer := &net.Dialer{Timeout: 10 * time.Second, Control: f.checkDial}
	f.client = &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
		},
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("too many redirects (max %d)", maxRedirects)
			}
			return nil
		},
	}
	return f
}

// publicOnly refuses loopback, private, link-local (cloud metadata included)
// and unspecified addresses.
func publicOnly(ip net.IP) error {
	switch {
	case ip.IsLoopback(), ip.IsPrivate(), ip.IsUnspecified(),
		ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast(), ip.IsMulticast():
		return fmt.Errorf("blocked address %s", ip)
	}
	return nil
}

// checkDial runs after DNS resolution, so redirects and rebinding are covered.
func (f *fetcher) checkDial(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return fmt.Errorf("blocked address %s", address)
	}
	return f.allow(ip)
}

func (f *fetcher) tooLarge(n int64) error {
	return fmt.Errorf("file too large: %d bytes (max %d)", n, f.limit)
}

// read dispatches on the source form.
func (f *fetcher) read(ctx context.Context, source string) (payload, error) {
	if strings.HasPrefix(source, "data:") {
		return f.readDataURI(source)
	}
	return f.download(ctx, source)
}

// readDataURI decodes data:<mime>;base64,<data>.
func (f *fetcher) readDataURI(uri string) (payload, error) {
	meta, encoded, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return payload{}, errors.New("invalid data URI: missing comma separator")
	}
	mime, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return payload{}, errors.New("only base64 data URIs are supported")
	}
	if n := int64(base64.StdEncoding.DecodedLen(len(encoded))); n > f.limit+2 {
		return payload{}, f.tooLarge(n)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(encoded); err != nil {
			return payload{}, fmt.Errorf("invalid base64 data: %w", err)
		}
	}
	if int64(len(data)) > f.limit {
		return payload{}, f.tooLarge(int64(len(data)))
	}
	return payload{data: data, mime: mime}, nil
}

// download GETs an http(s) URL.
func (f *fetcher) download(ctx context.Context, rawURL string) (payload, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return payload{}, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return payload{}, fmt.Errorf("unsupported scheme %q (only http and https)", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return payload{}, fmt.Errorf("invalid URL: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return payload{}, fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return payload{}, fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}
	if resp.ContentLength > f.limit {
		return payload{}, f.tooLarge(resp.ContentLength)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.limit+1))
	if err != nil {
		return payload{}, fmt.Errorf("download failed: %w", err)
	}
	if int64(len(data)) > f.limit {
		return payload{}, fmt.Errorf("file too large: exceeds %d bytes", f.limit)
	}

	p := payload{data: data, mime: resp.Header.Get("Content-Type")}
	if base := path.Base(resp.Request.URL.Path); strings.Contains(base, ".") {
		p.name = base
	}
	return p, nil
}

// attachmentName picks the stored display name: the caller's choice, else the
// source's, else a fresh uuid with the extension of the declared type.
func attachmentName(given string, p payload) string {
	name := given
	if name == "" {
		name = p.name
	}
	if name == "" {
		ext, ok := recordservice.AttachmentExtension(p.mime)
		if !ok {
			ext = ".bin"
		}
		name = uuid.NewString() + ext
	}
	return cleanFilename(name)
}

// cleanFilename drops directories and replaces characters outside [A-Za-z0-9._-].
func cleanFilename(name string) string {
	name = unsafeNameChars.ReplaceAllString(filepath.Base(name), "_")
	if name == "" || name == "." || name == ".." {
		return uuid.NewString()
	}
	return name
}

func (s *Server) attachFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recordID, err := req.RequireInt("record_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	source, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	p, err := s.fetch.read(ctx, source)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name := attachmentName(req.GetString("filename", ""), p)
	ext := strings.ToLower(filepath.Ext(name))
	if err := recordservice.CheckAttachment(p.data, ext); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	mime, _ := recordservice.AttachmentKind(ext)

	f, err := s.records.AttachFile(ctx, int64(recordID), name, mime, bytes.NewReader(p.data))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	out, _ := json.Marshal(attachResult{
		FileID:        f.ID,
		URL:           f.URL,
		MarkdownImage: fmt.Sprintf("![%s](%s)", f.Name, f.URL),
	})
	return mcp.NewToolResultText(string(out)), nil
}
