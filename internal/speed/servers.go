package speed

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	st "github.com/showwin/speedtest-go/speedtest"
)

// Server is a measurement endpoint. DownloadURL must accept a ?bytes= style
// size parameter or serve a fixed-size payload; UploadURL must accept POSTs.
type Server struct {
	Name        string
	Location    string
	Host        string // ping target
	DownloadURL string
	UploadURL   string

	// SizedDownload reports whether DownloadURL takes a bytes query param.
	SizedDownload bool
}

func (s Server) String() string {
	if s.Location == "" {
		return s.Name
	}
	return fmt.Sprintf("%s (%s)", s.Name, s.Location)
}

// Catalog is the built-in server list. First entry is the default.
var Catalog = []Server{
	{
		Name:          "Cloudflare",
		Location:      "Edge",
		Host:          "speed.cloudflare.com",
		DownloadURL:   "https://speed.cloudflare.com/__down",
		UploadURL:     "https://speed.cloudflare.com/__up",
		SizedDownload: true,
	},
	{
		Name:        "Google",
		Location:    "CDN",
		Host:        "www.google.com",
		DownloadURL: "https://www.google.com/generate_204",
		UploadURL:   "https://www.google.com/generate_204",
	},
}

// SelectServer picks a catalog entry by name (case-insensitive). "auto" or
// "speedtest" resolves the nearest speedtest.net server instead. An unknown
// name falls back to the default with an error the caller can log.
func SelectServer(ctx context.Context, name string) (Server, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "", "default":
		return Catalog[0], nil
	case "auto", "speedtest":
		return nearestSpeedtestServer(ctx)
	}
	for _, s := range Catalog {
		if strings.ToLower(s.Name) == n {
			return s, nil
		}
	}
	return Catalog[0], fmt.Errorf("unknown server %q, using %s", name, Catalog[0].Name)
}

// nearestSpeedtestServer discovers the closest speedtest.net server and
// adapts it into a catalog entry. Its upload endpoint is the standard
// upload.php next to the server's upload target.
func nearestSpeedtestServer(ctx context.Context) (Server, error) {
	client := st.New()
	servers, err := client.FetchServerListContext(ctx)
	if err != nil {
		return Server{}, fmt.Errorf("fetch speedtest server list: %w", err)
	}
	if avail := servers.Available(); avail != nil {
		servers = *avail
	}
	if len(servers) == 0 {
		return Server{}, fmt.Errorf("no speedtest servers available")
	}
	sort.Slice(servers, func(i, j int) bool { return servers[i].Distance < servers[j].Distance })
	s := servers[0]

	host := s.Host
	if h, _, ok := strings.Cut(host, ":"); ok {
		host = h
	}
	base := strings.TrimSuffix(s.URL, "/upload.php")
	return Server{
		Name:        s.Sponsor,
		Location:    fmt.Sprintf("%s, %s", s.Name, s.Country),
		Host:        host,
		DownloadURL: base + "/random4000x4000.jpg",
		UploadURL:   s.URL,
	}, nil
}

// sizedDownloadURL appends the transfer size for servers that support it.
func sizedDownloadURL(s Server, bytes int64) string {
	if !s.SizedDownload {
		return s.DownloadURL
	}
	u, err := url.Parse(s.DownloadURL)
	if err != nil {
		return s.DownloadURL
	}
	q := u.Query()
	q.Set("bytes", fmt.Sprintf("%d", bytes))
	u.RawQuery = q.Encode()
	return u.String()
}
