package featurefile

import (
	"fmt"
	"strings"
)

const (
	resultPrefix = "chunk_"
	resultSuffix = ".geojson"
)

// ResultName is the file holding one chunk's matches for one hazard layer.
func ResultName(chunkID, layer, regionHash string) string {
	return resultPrefix + chunkID + "_" + layer + "_" + regionHash + resultSuffix
}

type ResultFile struct {
	ChunkID    string
	Layer      string
	RegionHash string
}

// ParseResultName is the inverse of ResultName.
func ParseResultName(name string) (ResultFile, bool) {
	if !strings.HasPrefix(name, resultPrefix) || !strings.HasSuffix(name, resultSuffix) {
		return ResultFile{}, false
	}
	parts := strings.Split(strings.TrimSuffix(strings.TrimPrefix(name, resultPrefix), resultSuffix), "_")
	if len(parts) != 4 || parts[2] == "" || parts[3] == "" {
		return ResultFile{}, false
	}
	return ResultFile{
		ChunkID:    parts[0] + "_" + parts[1],
		Layer:      parts[2],
		RegionHash: parts[3],
	}, true
}

func MergedName(layer, hash string) string {
	return fmt.Sprintf("osm_buildings_flood_%syr_%s.geojson", layer, hash)
}

func FallbackName(layer string, batch int, hash string) string {
	return fmt.Sprintf("osm_buildings_flood_%syr_batch%d_%s.geojson", layer, batch, hash)
}

func InfoName(hash string) string {
	return fmt.Sprintf("flood_info_%s.json", hash)
}
