// file: internal/adapter/datasource/nasapower/parse.go
package nasapower

import (
	"encoding/json"
	"fmt"
	"sort"

	"DataAgents/internal/core/port"
)

// 数据行的固定列
var resultColumns = []port.Column{
	{Name: "parameter", DataType: "string"},
	{Name: "date", DataType: "string"},
	{Name: "value", DataType: "float"},
	{Name: "latitude", DataType: "float"},
	{Name: "longitude", DataType: "float"},
}

type geoFeature struct {
	Type     string `json:"type"`
	Geometry struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
	Properties struct {
		Parameter map[string]map[string]json.Number `json:"parameter"`
	} `json:"properties"`
}

type geoDocument struct {
	geoFeature
	Features []geoFeature `json:"features"`
	Messages []string     `json:"messages"`
}

// parseResponse 将 GeoJSON Feature / FeatureCollection 展开为
// {parameter, date, value, latitude, longitude} 行，按请求参数顺序、再按日期排序。
func parseResponse(body []byte, parameters []string) ([]map[string]any, []string, error) {
	var doc geoDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, nil, fmt.Errorf("解析 NASA POWER 响应失败: %w", err)
	}

	features := doc.Features
	if len(features) == 0 && doc.Properties.Parameter != nil {
		features = []geoFeature{doc.geoFeature}
	}

	rows := make([]map[string]any, 0)
	for _, code := range parameters {
		for _, f := range features {
			var lat, lon any
			if len(f.Geometry.Coordinates) >= 2 {
				lon, lat = f.Geometry.Coordinates[0], f.Geometry.Coordinates[1]
			}
			series := f.Properties.Parameter[code]
			dates := make([]string, 0, len(series))
			for d := range series {
				dates = append(dates, d)
			}
			sort.Strings(dates)
			for _, d := range dates {
				var value any
				if v, err := series[d].Float64(); err == nil {
					value = v
				}
				rows = append(rows, map[string]any{
					"parameter": code,
					"date":      d,
					"value":     value,
					"latitude":  lat,
					"longitude": lon,
				})
			}
		}
	}
	return rows, doc.Messages, nil
}
