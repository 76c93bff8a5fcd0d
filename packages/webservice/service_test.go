package webservice

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpclient "github.com/abdul-hamid-achik/webservice/packages/http"
)

func newTestService(opts ...ServiceOption) *Service {
	return NewService(httpclient.NewClient(), opts...)
}

func TestService_DoJSON(t *testing.T) {
	var gotMethod, gotQuery, gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotQuery = r.URL.RawQuery
		gotContentType = r.Header.Get("Content-Type")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":1,"tags":["a","b"]}`))
	}))
	defer server.Close()

	res := newTestService().Do(context.Background(),
		NewRequest(MethodGet, server.URL+"/items", EncodingJSON, WithParams(NewParams("q", "x y")))).Result()

	require.NoError(t, res.Err)
	assert.Equal(t, "GET", gotMethod)
	assert.Equal(t, "q=x%20y", gotQuery)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, int64(1), res.Data.Get("id").Int())
	assert.Equal(t, "b", res.Data.Get("tags.1").String())
	assert.Equal(t, http.StatusOK, res.StatusCode())
	assert.Equal(t, "application/json", res.Response.Header.Get("Content-Type"))
}

func TestService_PostBody(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	res := newTestService().RequestJSON(context.Background(), MethodPost, server.URL, NewParams("name", "ada", "age", 36)).Result()

	require.NoError(t, res.Err)
	assert.Equal(t, map[string]any{"name": "ada", "age": float64(36)}, received)
	assert.Equal(t, http.StatusCreated, res.StatusCode())
	assert.Empty(t, res.Body)
	assert.False(t, res.IsJSON())
}

func TestService_HTTPStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("missing"))
	}))
	defer server.Close()

	res := newTestService().RequestJSON(context.Background(), MethodGet, server.URL, nil).Result()

	require.Error(t, res.Err)
	assert.Equal(t, KindHTTPStatus, KindOf(res.Err))
	assert.Equal(t, "404", res.Code())
	assert.Equal(t, "missing", string(res.Body))
}

func TestService_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":"error_access_token","message":{"message":"expired"}}}`))
	}))
	defer server.Close()

	res := newTestService().RequestJSON(context.Background(), MethodGet, server.URL, nil).Result()

	serverErr, ok := AsServerError(res.Err)
	require.True(t, ok)
	assert.Equal(t, "error_access_token", serverErr.Code)
	assert.Equal(t, http.StatusUnauthorized, serverErr.Status)
}

func TestService_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	res := newTestService().RequestJSON(context.Background(), MethodGet, url, nil).Result()

	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, ErrTransport)
	assert.Nil(t, res.Response)
}

func TestService_RequestTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	start := time.Now()
	res := newTestService().Do(context.Background(),
		NewRequest(MethodGet, server.URL, EncodingJSON, WithTimeout(50*time.Millisecond))).Result()

	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestService_RequestTimeoutLongerThanClientTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(400 * time.Millisecond)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	service := NewService(httpclient.NewClient(httpclient.WithTimeout(200 * time.Millisecond)))
	res := service.Do(context.Background(),
		NewRequest(MethodGet, server.URL, EncodingJSON, WithTimeout(2*time.Second))).Result()

	require.NoError(t, res.Err)
	assert.True(t, res.Data.Get("ok").Bool())
}

func TestService_InvalidTargetNeverReachesTransport(t *testing.T) {
	called := false
	transport := httpclient.TransportFunc(func(*http.Request) (*httpclient.Response, error) {
		called = true
		return nil, nil
	})

	res := NewService(transport).RequestJSON(context.Background(), MethodGet, "not a url", nil).Result()

	assert.ErrorIs(t, res.Err, ErrInvalidTarget)
	assert.False(t, called)
}

func TestService_Observers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer server.Close()

	var mu sync.Mutex
	var seen []string
	observer := ObserverFunc(func(method Method, url string, res *Result) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, method.String()+" "+url+" "+res.Code())
	})

	svc := newTestService(WithObserver(observer), WithObserver(nil))
	svc.RequestJSON(context.Background(), MethodDelete, server.URL+"/x", nil).Result()
	svc.RequestJSON(context.Background(), MethodGet, "::bad", nil).Result()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"DELETE " + server.URL + "/x 418",
		"GET ::bad ::bad",
	}, seen)
}

func TestService_LogsRequestAndResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	res := newTestService(WithLogger(&logger)).RequestJSON(context.Background(), MethodGet, server.URL, nil).Result()
	require.NoError(t, res.Err)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	assert.Contains(t, string(lines[0]), `"message":"Request"`)
	assert.Contains(t, string(lines[1]), `"status":200`)
}

func TestService_DownloadProgress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{}"))
	}))
	defer server.Close()

	var got []float32
	newTestService().Do(context.Background(), NewRequest(MethodGet, server.URL, EncodingJSON,
		WithDownloadProgress(func(f float32) { got = append(got, f) }))).Result()

	assert.Equal(t, []float32{1}, got)
}

func TestService_UploadData(t *testing.T) {
	var (
		contentType string
		body        []byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		body, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"uploaded":true}`))
	}))
	defer server.Close()

	var progress float32
	res := newTestService().UploadData(context.Background(), server.URL, []byte("jpegbytes"), "photo",
		NewParams("album", "7"), Headers{"X-Trace": "t"}, func(f float32) { progress = f }).Result()

	require.NoError(t, res.Err)
	assert.True(t, res.Data.Get("uploaded").Bool())
	assert.Equal(t, "application/x-www-form-urlencoded", contentType)
	assert.Contains(t, string(body), "Content-Type: image/jpg\r\n\r\njpegbytes\r\n")
	assert.Contains(t, string(body), "name=\"album\"\r\n\r\n7\r\n")
	assert.Equal(t, float32(1), progress)
}

func TestService_UploadStrictMultipart(t *testing.T) {
	var fileName, value string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		value = r.FormValue("album")
		if files := r.MultipartForm.File["photo"]; len(files) == 1 {
			fileName = files[0].Filename
		}
	}))
	defer server.Close()

	res := newTestService(WithStrictMultipart(true)).UploadData(context.Background(), server.URL,
		[]byte("jpegbytes"), "photo", NewParams("album", "7"), nil, nil).Result()

	require.NoError(t, res.Err)
	assert.Equal(t, "7", value)
	assert.Len(t, fileName, 36)
}

func TestSinglePartRequest(t *testing.T) {
	mreq := singlePartRequest("http://x.test", []byte("d"), "key", nil, Headers{"A": "1"})

	require.Len(t, mreq.Parts, 1)
	part := mreq.Parts[0]
	assert.Equal(t, "key", part.Name)
	assert.Equal(t, UploadDataMimeType, part.MimeType)
	assert.Len(t, part.FileName, 36)
	assert.Equal(t, Headers{"A": "1"}, mreq.Headers)

	// strict encoding carries the generated file name
	body := MultipartEncoder{Strict: true}.Encode(nil, mreq.Parts, testBoundary)
	form, err := multipart.NewReader(bytes.NewReader(body), testBoundary).ReadForm(1 << 10)
	require.NoError(t, err)
	defer func() { _ = form.RemoveAll() }()
	assert.Equal(t, part.FileName, form.File["key"][0].Filename)
}
