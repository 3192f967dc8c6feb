package models

// DocumentRef is the provider's handle to the cached textbook.
type DocumentRef struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	URI         string `json:"uri"`
	MIMEType    string `json:"mime_type"`
}

// URISuffix returns the last n characters of the URI for display.
func (d *DocumentRef) URISuffix(n int) string {
	if d == nil {
		return ""
	}
	if len(d.URI) <= n {
		return d.URI
	}
	return d.URI[len(d.URI)-n:]
}

// DocumentInfo describes the local reference file.
type DocumentInfo struct {
	Path      string `json:"path"`
	Pages     int    `json:"pages"`
	SizeBytes int64  `json:"size_bytes"`
}

type DocumentStatus struct {
	Loaded      bool   `json:"loaded"`
	DisplayName string `json:"display_name"`
	MIMEType    string `json:"mime_type"`
	URISuffix   string `json:"uri_suffix"`
	Pages       int    `json:"pages"`
	SizeBytes   int64  `json:"size_bytes"`
}
