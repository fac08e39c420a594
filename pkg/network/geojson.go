package network

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// LoadGeoJSON reads a FeatureCollection of LineString links in WGS84.
// Required properties per feature: link_id, a_node, b_node. Optional:
// direction (0 both, 1 forward, -1 reverse) and any numeric attributes,
// which are kept for speed filtering.
func LoadGeoJSON(path string) ([]Link, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read network file: %w", err)
	}
	return ParseGeoJSON(data)
}

func ParseGeoJSON(data []byte) ([]Link, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse network geojson: %w", err)
	}

	links := make([]Link, 0, len(fc.Features))
	for i, f := range fc.Features {
		ls, ok := f.Geometry.(orb.LineString)
		if !ok {
			return nil, fmt.Errorf("feature %d: geometry is %T, want LineString", i, f.Geometry)
		}

		id, err := intProperty(f.Properties, "link_id")
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		aNode, err := intProperty(f.Properties, "a_node")
		if err != nil {
			return nil, fmt.Errorf("link %d: %w", id, err)
		}
		bNode, err := intProperty(f.Properties, "b_node")
		if err != nil {
			return nil, fmt.Errorf("link %d: %w", id, err)
		}

		direction := DirectionBoth
		if _, present := f.Properties["direction"]; present {
			d, err := intProperty(f.Properties, "direction")
			if err != nil {
				return nil, fmt.Errorf("link %d: %w", id, err)
			}
			if d < -1 || d > 1 {
				return nil, fmt.Errorf("link %d: direction must be -1, 0 or 1, got %d", id, d)
			}
			direction = int8(d)
		}

		link, err := NewLinkWGS84(id, aNode, bNode, direction, ls)
		if err != nil {
			return nil, err
		}

		for key, value := range f.Properties {
			switch key {
			case "link_id", "a_node", "b_node", "direction":
				continue
			}
			if v, ok := value.(float64); ok {
				if link.Attributes == nil {
					link.Attributes = map[string]float64{}
				}
				link.Attributes[key] = v
			}
		}
		links = append(links, link)
	}
	return links, nil
}

func intProperty(props geojson.Properties, key string) (int64, error) {
	v, ok := props[key]
	if !ok {
		return 0, fmt.Errorf("missing property %q", key)
	}
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	default:
		return 0, fmt.Errorf("property %q is %T, want number", key, v)
	}
}
