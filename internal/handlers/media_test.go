package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
)

func multipartUpload(t *testing.T, field, contentType string, data []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="`+field+`"; filename="upload.bin"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPut, "/api/users/alice/banner", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.SetPathValue("id", "alice")
	return req
}

func TestMediaHandlerUploadBanner(t *testing.T) {
	store := newInMemoryUserStore(testUser("alice", "Alice", "alice@example.com"))
	storage := &mediaStorageStub{}
	handler := MediaHandler{Users: store, Storage: storage}

	rec := httptest.NewRecorder()
	handler.UploadBanner(rec, multipartUpload(t, uploadFormField, "image/png", []byte("png-bytes")))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody(t, rec)["message"]; got != "Successfully updated user's banner" {
		t.Fatalf("unexpected message %q", got)
	}

	if len(storage.keys) != 1 || !strings.HasPrefix(storage.keys[0], "users/alice/banner/") || !strings.HasSuffix(storage.keys[0], ".png") {
		t.Fatalf("unexpected storage keys %v", storage.keys)
	}
	if string(storage.data[0]) != "png-bytes" || storage.contentTypes[0] != "image/png" {
		t.Fatalf("unexpected stored object %q (%s)", storage.data[0], storage.contentTypes[0])
	}

	banner := store.get("alice").Banner
	if banner.URL != "https://cdn.example.com/"+storage.keys[0] || banner.ContentType != "image/png" {
		t.Fatalf("unexpected banner %+v", banner)
	}
}

func TestMediaHandlerUploadPicture(t *testing.T) {
	store := newInMemoryUserStore(testUser("alice", "Alice", "alice@example.com"))
	handler := MediaHandler{Users: store, Storage: &mediaStorageStub{}}

	rec := httptest.NewRecorder()
	handler.UploadPicture(rec, multipartUpload(t, uploadFormField, "image/jpeg", []byte("jpeg-bytes")))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	if got := decodeBody(t, rec)["message"]; got != "Successfully updated user's profile picture" {
		t.Fatalf("unexpected message %q", got)
	}
	if store.get("alice").ProfilePicture.ContentType != "image/jpeg" {
		t.Fatal("expected profile picture to be stored")
	}
	if store.get("alice").Banner.URL != "" {
		t.Fatal("banner must stay untouched")
	}
}

func TestMediaHandlerRejections(t *testing.T) {
	cases := []struct {
		name        string
		handler     func() MediaHandler
		request     func(t *testing.T) *http.Request
		wantStatus  int
		wantMessage string
	}{
		{
			name: "tooLarge",
			handler: func() MediaHandler {
				return MediaHandler{Users: newInMemoryUserStore(testUser("alice", "Alice", "a@example.com")), Storage: &mediaStorageStub{}, MaxUploadBytes: 1 << 20}
			},
			request: func(t *testing.T) *http.Request {
				return multipartUpload(t, uploadFormField, "image/png", bytes.Repeat([]byte("x"), (1<<20)+1))
			},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "File size exceeds the limit of 1MB.",
		},
		{
			name: "badType",
			handler: func() MediaHandler {
				return MediaHandler{Users: newInMemoryUserStore(testUser("alice", "Alice", "a@example.com")), Storage: &mediaStorageStub{}}
			},
			request: func(t *testing.T) *http.Request {
				return multipartUpload(t, uploadFormField, "application/pdf", []byte("%PDF"))
			},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Invalid file type.",
		},
		{
			name: "missingFile",
			handler: func() MediaHandler {
				return MediaHandler{Users: newInMemoryUserStore(testUser("alice", "Alice", "a@example.com")), Storage: &mediaStorageStub{}}
			},
			request: func(t *testing.T) *http.Request {
				return multipartUpload(t, "other", "image/png", []byte("png"))
			},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "No banner upload found",
		},
		{
			name: "unknownUser",
			handler: func() MediaHandler {
				return MediaHandler{Users: newInMemoryUserStore(), Storage: &mediaStorageStub{}}
			},
			request: func(t *testing.T) *http.Request {
				return multipartUpload(t, uploadFormField, "image/png", []byte("png"))
			},
			wantStatus:  http.StatusNotFound,
			wantMessage: "No user found",
		},
		{
			name: "storageFailure",
			handler: func() MediaHandler {
				return MediaHandler{Users: newInMemoryUserStore(testUser("alice", "Alice", "a@example.com")), Storage: &mediaStorageStub{err: errors.New("s3 down")}}
			},
			request: func(t *testing.T) *http.Request {
				return multipartUpload(t, uploadFormField, "image/png", []byte("png"))
			},
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "There was an error updating the user's banner",
		},
		{
			name: "notConfigured",
			handler: func() MediaHandler {
				return MediaHandler{Users: newInMemoryUserStore()}
			},
			request: func(t *testing.T) *http.Request {
				return multipartUpload(t, uploadFormField, "image/png", []byte("png"))
			},
			wantStatus:  http.StatusServiceUnavailable,
			wantMessage: "media uploads are not configured",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tc.handler().UploadBanner(rec, tc.request(t))

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d got %d", tc.wantStatus, rec.Code)
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if body["error"] != tc.wantMessage {
				t.Fatalf("expected error %q got %q", tc.wantMessage, body["error"])
			}
		})
	}
}
