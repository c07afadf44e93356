package engine

import (
	"context"
	"testing"
	"time"
)

const (
	shareInfoURL = "https://drive.proton.me/api/drive/urls/ABCDEFGHIJ"
	listingURL   = "https://drive.proton.me/api/drive/urls/ABCDEFGHIJ/folders/link-1/children?Page=0&PageSize=150"
)

func TestCorrelatorClassify(t *testing.T) {
	c := NewCorrelator("https://drive.proton.me", testTarget(t), nil)
	tests := []struct {
		name   string
		url    string
		status int
		want   ResponseKind
	}{
		{"share info", shareInfoURL, 200, ResponseShareInfo},
		{"share info with query", shareInfoURL + "?x=1", 200, ResponseShareInfo},
		{"folder listing", listingURL, 200, ResponseFolderListing},
		{"auth 422", shareInfoURL + "/auth", 422, ResponseInvalidPassword},
		{"info 422", shareInfoURL + "/info", 422, ResponseShareNotFound},
		{"auth ok", shareInfoURL + "/auth", 200, ResponseIgnored},
		{"other 422", "https://drive.proton.me/api/core/v4/users", 422, ResponseIgnored},
		{"other share", "https://drive.proton.me/api/drive/urls/ZZZZZZZZZZ", 200, ResponseIgnored},
		{"listing on other origin", "https://evil.example/api/drive/urls/ABCDEFGHIJ/folders/x", 200, ResponseIgnored},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.url, tt.status); got != tt.want {
				t.Fatalf("Classify(%q, %d) = %d; want %d", tt.url, tt.status, got, tt.want)
			}
		})
	}
}

func TestCorrelatorFolderNeedsListing(t *testing.T) {
	c := NewCorrelator("https://drive.proton.me", testTarget(t), nil)
	c.Handle(jsonResponse(shareInfoURL, 200, `{"Code":1000,"Token":{"MIMEType":"Folder","LinkType":1}}`))
	if _, ok := c.Metadata(); ok {
		t.Fatal("folder share ready before its listing arrived")
	}

	c.Handle(jsonResponse(listingURL, 200, `{"Code":1000,"Links":[{"Type":1},{"Type":2},{"Type":2}]}`))
	c.Handle(jsonResponse(listingURL, 200, `{"Code":1000,"Links":[]}`))

	meta, err := c.Wait(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !meta.IsFolder || len(meta.Listing) != 3 {
		t.Fatalf("meta = %+v; want folder with the first listing", meta)
	}
	if got := c.Listings(); got != 2 {
		t.Fatalf("Listings() = %d; want 2", got)
	}
}

func TestCorrelatorFileReadyOnShareInfo(t *testing.T) {
	c := NewCorrelator("https://drive.proton.me", testTarget(t), nil)
	c.Handle(jsonResponse(shareInfoURL, 200, `{"Code":1000,"Token":{"MIMEType":"text/plain","Size":54}}`))
	c.Handle(jsonResponse(shareInfoURL, 200, `{"Code":1000,"Token":{"MIMEType":"image/png","Size":1}}`))

	meta, err := c.Wait(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if meta.IsFolder || meta.MIMEType != "text/plain" || meta.Size != 54 {
		t.Fatalf("meta = %+v; want first share info only", meta)
	}
}

func TestCorrelatorAPIErrors(t *testing.T) {
	tests := []struct {
		url  string
		code string
	}{
		{shareInfoURL + "/auth", CodeInvalidPassword},
		{shareInfoURL + "/info", CodeShareNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			c := NewCorrelator("https://drive.proton.me", testTarget(t), nil)
			c.Handle(Response{URL: tt.url, Status: 422})
			_, err := c.Wait(context.Background(), time.Second)
			if !IsCode(err, tt.code) {
				t.Fatalf("Wait error = %v; want %s", err, tt.code)
			}
		})
	}
}

func TestCorrelatorWaitTimesOut(t *testing.T) {
	c := NewCorrelator("https://drive.proton.me", testTarget(t), nil)
	_, err := c.Wait(context.Background(), 10*time.Millisecond)
	if !IsCode(err, CodeTimeout) {
		t.Fatalf("Wait error = %v; want %s", err, CodeTimeout)
	}
}
