package client

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"

	"github.com/nandlabs/jobsched/codec"
	"github.com/nandlabs/jobsched/rest"
)

// MultipartFile describes a single file part to attach to a multipart request.
type MultipartFile struct {
	ParamName string
	FilePath  string
}

// Request is a builder for an outbound HTTP call issued through a Client.
type Request struct {
	url            string
	method         string
	header         http.Header
	queryParam     url.Values
	body           interface{}
	contentType    string
	multiPartFiles []*MultipartFile
	client         *Client
}

// Method returns the HTTP method configured for this request.
func (r *Request) Method() string {
	return r.method
}

// AddQueryParam adds a query string parameter to the request URL.
func (r *Request) AddQueryParam(key, value string) *Request {
	if r.queryParam == nil {
		r.queryParam = url.Values{}
	}
	r.queryParam.Add(key, value)
	return r
}

// AddHeader adds a request header.
func (r *Request) AddHeader(key, value string) *Request {
	if r.header == nil {
		r.header = http.Header{}
	}
	r.header.Add(key, value)
	return r
}

// SetBody sets the value that will be encoded as the request body using the
// codec matching ContentType.
func (r *Request) SetBody(body interface{}) *Request {
	r.body = body
	return r
}

// SetContentType sets the content type used to encode the body.
func (r *Request) SetContentType(contentType string) *Request {
	r.contentType = contentType
	return r
}

// SetMultipartFiles attaches one or more files to be sent as multipart/form-data.
func (r *Request) SetMultipartFiles(files ...*MultipartFile) *Request {
	r.multiPartFiles = append(r.multiPartFiles, files...)
	return r
}

func (r *Request) toHttpRequest() (*http.Request, error) {
	reqURL := r.url
	if r.queryParam != nil && len(r.queryParam) > 0 {
		reqURL = reqURL + "?" + r.queryParam.Encode()
	}

	var bodyReader io.Reader
	contentType := r.contentType

	if len(r.multiPartFiles) > 0 {
		buf := &bytes.Buffer{}
		w := multipart.NewWriter(buf)
		for _, f := range r.multiPartFiles {
			file, err := os.Open(f.FilePath)
			if err != nil {
				return nil, err
			}
			if err := rest.WriteMultipartFormFile(w, f.ParamName, f.FilePath, file); err != nil {
				file.Close()
				return nil, err
			}
			file.Close()
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		bodyReader = buf
		contentType = w.FormDataContentType()
	} else if r.body != nil {
		if contentType == "" {
			contentType = rest.JSONContentType
		}
		c, err := codec.Get(contentType, r.client.codecOptions)
		if err != nil {
			return nil, err
		}
		encoded, err := c.EncodeToBytes(r.body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequest(r.method, reqURL, bodyReader)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		httpReq.Header.Set(rest.ContentTypeHeader, contentType)
	}
	for k, values := range r.header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	return httpReq, nil
}
