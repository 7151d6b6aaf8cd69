package overpass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmgeojson"
	"github.com/royalcat/floodgen/geomodel"
)

const (
	DefaultPrimary       = "https://overpass-api.de/api/interpreter"
	DefaultServerTimeout = 180 * time.Second
	userAgent            = "floodgen/1.0"
)

func DefaultAlternates() []string {
	return []string{
		"https://overpass-api.de/api/interpreter",
		"https://overpass.kumi.systems/api/interpreter",
	}
}

// Client queries an Overpass API interpreter.
type Client struct {
	http          *http.Client
	serverTimeout time.Duration
	log           *slog.Logger
}

var _ Provider = (*Client)(nil)

func NewClient(httpClient *http.Client, serverTimeout time.Duration, log *slog.Logger) *Client {
	if serverTimeout <= 0 {
		serverTimeout = DefaultServerTimeout
	}
	if httpClient == nil {
		httpClient = NewHTTPClient(serverTimeout + 30*time.Second)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		http:          httpClient,
		serverTimeout: serverTimeout,
		log:           log.With("component", "overpass"),
	}
}

// BuildQuery selects nodes, ways and relations carrying tag inside bound together
// with everything needed to build their geometry.
func BuildQuery(bound orb.Bound, tag string, timeout time.Duration) string {
	bbox := strings.Join([]string{
		formatCoord(bound.Min.Lat()),
		formatCoord(bound.Min.Lon()),
		formatCoord(bound.Max.Lat()),
		formatCoord(bound.Max.Lon()),
	}, ",")

	var sb strings.Builder
	fmt.Fprintf(&sb, "[out:json][timeout:%d];(", int(timeout.Seconds()))
	for _, t := range []string{"node", "way", "relation"} {
		fmt.Fprintf(&sb, "%s[%q](%s);", t, tag, bbox)
	}
	sb.WriteString(");(._;>;);out body;")
	return sb.String()
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type overpassMeta struct {
	Remark string `json:"remark"`
}

func (c *Client) Query(ctx context.Context, endpoint string, bound orb.Bound, tag string) Response {
	form := url.Values{"data": {BuildQuery(bound, tag, c.serverTimeout)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return TransientError(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	t0 := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return TransientError(fmt.Errorf("overpass request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return TransientError(fmt.Errorf("error reading overpass response: %w", err))
	}
	c.log.Debug("overpass response", "endpoint", endpoint, "status", resp.StatusCode, "bytes", len(body), "duration", time.Since(t0))

	if resp.StatusCode != http.StatusOK {
		return TransientError(fmt.Errorf("overpass returned status %d", resp.StatusCode))
	}

	return ParseResponse(body, tag)
}

// ParseResponse classifies an Overpass JSON body. A remark means the server gave
// up part way (timeout, memory), so the elements cannot be trusted as complete.
func ParseResponse(body []byte, tag string) Response {
	var meta overpassMeta
	if err := json.Unmarshal(body, &meta); err != nil {
		return TransientError(fmt.Errorf("malformed overpass response: %w", err))
	}
	if meta.Remark != "" {
		return TransientError(fmt.Errorf("overpass remark: %s", meta.Remark))
	}

	o := &osm.OSM{}
	if err := json.Unmarshal(body, o); err != nil {
		return TransientError(fmt.Errorf("malformed overpass elements: %w", err))
	}

	fc, err := osmgeojson.Convert(o, osmgeojson.NoMeta(true), osmgeojson.NoRelationMembership(true))
	if err != nil {
		return TransientError(fmt.Errorf("error building geometries: %w", err))
	}

	buildings := buildingsFromFeatures(fc, tag)
	if len(buildings) == 0 {
		return ConfirmedEmpty()
	}
	return Found(buildings)
}

func buildingsFromFeatures(fc *geojson.FeatureCollection, tag string) []geomodel.Building {
	buildings := make([]geomodel.Building, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		kind, ok := tagValue(f.Properties["tags"], tag)
		if !ok {
			continue
		}
		id, err := featureID(f)
		if err != nil {
			continue
		}
		buildings = append(buildings, geomodel.Building{
			ID:       id,
			Kind:     kind,
			Geometry: f.Geometry,
		})
	}
	return buildings
}

func tagValue(tags interface{}, key string) (string, bool) {
	switch tags := tags.(type) {
	case map[string]string:
		v, ok := tags[key]
		return v, ok
	case map[string]interface{}:
		v, ok := tags[key]
		s, _ := v.(string)
		return s, ok
	}
	return "", false
}

var errNoID = errors.New("feature has no id")

func featureID(f *geojson.Feature) (string, error) {
	if id, ok := f.ID.(string); ok && id != "" {
		return id, nil
	}
	typ, _ := f.Properties["type"].(string)
	if typ != "" && f.Properties["id"] != nil {
		return fmt.Sprintf("%s/%v", typ, f.Properties["id"]), nil
	}
	return "", errNoID
}
