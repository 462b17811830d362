package recordservice

import (
	"context"
	"strings"
	"testing"

	"github.com/starford/moodlog/internal/apperr"
)

var pngHeader = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 24)...)

func TestAttachmentKindAndExtension(t *testing.T) {
	if mime, ok := AttachmentKind(".JPEG"); !ok || mime != "image/jpeg" {
		t.Errorf("AttachmentKind(.JPEG) = %q, %v", mime, ok)
	}
	if _, ok := AttachmentKind(".exe"); ok {
		t.Error(".exe must not be accepted")
	}
	if ext, ok := AttachmentExtension("image/jpeg; charset=binary"); !ok || ext != ".jpg" {
		t.Errorf("AttachmentExtension = %q, %v", ext, ok)
	}
	if _, ok := AttachmentExtension("text/plain"); ok {
		t.Error("text/plain must not be accepted")
	}
	exts := AttachmentExtensions()
	if len(exts) != 7 || exts[0] != ".gif" {
		t.Errorf("extensions = %v", exts)
	}
}

func TestCheckAttachment(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		ext  string
		ok   bool
	}{
		{"png", pngHeader, ".png", true},
		{"png named jpg", pngHeader, ".jpg", false},
		{"text named png", []byte("just text"), ".png", false},
		{"svg", []byte(`<?xml version="1.0"?><svg xmlns="http://www.w3.org/2000/svg"></svg>`), ".svg", true},
		{"not svg", []byte("<html></html>"), ".svg", false},
		{"pdf", []byte("%PDF-1.7\n"), ".pdf", true},
		{"unknown ext", pngHeader, ".exe", false},
	}
	for _, tc := range cases {
		err := CheckAttachment(tc.data, tc.ext)
		if tc.ok && err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && !apperr.IsClientError(err) {
			t.Errorf("%s: err = %v, want client error", tc.name, err)
		}
	}
}

func TestAttachFile_ContentTypeFromExtension(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	r, _ := svc.Create(ctx, CreateInput{UserID: 1})

	f, err := svc.AttachFile(ctx, r.ID, "scan.PDF", "", strings.NewReader("%PDF-1.7\n"))
	if err != nil {
		t.Fatalf("AttachFile: %v", err)
	}
	if f.Type != "application/pdf" {
		t.Errorf("type = %q, want application/pdf", f.Type)
	}
}
