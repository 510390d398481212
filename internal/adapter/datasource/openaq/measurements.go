// file: internal/adapter/datasource/openaq/measurements.go
package openaq

import (
	"encoding/json"
	"fmt"

	"DataAgents/internal/core/port"
	"DataAgents/internal/pagination"

	"github.com/go-viper/mapstructure/v2"
)

// location 是 /locations 结果中本适配器关心的部分
type location struct {
	ID       int64  `mapstructure:"id"`
	Name     string `mapstructure:"name"`
	Locality string `mapstructure:"locality"`
	Timezone string `mapstructure:"timezone"`
	Country  struct {
		Code string `mapstructure:"code"`
		Name string `mapstructure:"name"`
	} `mapstructure:"country"`
	Coordinates struct {
		Latitude  float64 `mapstructure:"latitude"`
		Longitude float64 `mapstructure:"longitude"`
	} `mapstructure:"coordinates"`
	Sensors []sensor `mapstructure:"sensors"`
}

type sensor struct {
	ID        int64     `mapstructure:"id"`
	Name      string    `mapstructure:"name"`
	Parameter Parameter `mapstructure:"parameter"`
}

// decodeLocations 将分页引擎返回的行解码为 location。
// 行中的数字是 json.Number，弱类型解码负责转换。
func decodeLocations(rows []map[string]any) ([]location, error) {
	out := make([]location, 0, len(rows))
	for i, row := range rows {
		var loc location
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &loc,
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(row); err != nil {
			return nil, fmt.Errorf("解析第 %d 个站点失败: %w", i, err)
		}
		out = append(out, loc)
	}
	return out, nil
}

// sensorRef 是待查询的传感器及其所属站点
type sensorRef struct {
	sensor
	loc *location
}

// selectSensors 按出现顺序收集测量指定参数的传感器（parameterID 为 0 表示全部），去重并截断到 maxSensors。
func selectSensors(locs []location, parameterID int64, maxSensors int) (refs []sensorRef, skipped int) {
	seen := make(map[int64]struct{})
	for i := range locs {
		for _, s := range locs[i].Sensors {
			if parameterID != 0 && s.Parameter.ID != parameterID {
				continue
			}
			if _, ok := seen[s.ID]; ok {
				continue
			}
			seen[s.ID] = struct{}{}
			if len(refs) >= maxSensors {
				skipped++
				continue
			}
			refs = append(refs, sensorRef{sensor: s, loc: &locs[i]})
		}
	}
	return refs, skipped
}

// resultColumns 是测量值行的固定列
var resultColumns = []port.Column{
	{Name: "sensor_id", DataType: "integer"},
	{Name: "datetime", DataType: "string"},
	{Name: "value", DataType: "float"},
	{Name: "parameter", DataType: "string"},
	{Name: "parameter_id", DataType: "integer"},
	{Name: "units", DataType: "string"},
	{Name: "location_id", DataType: "integer"},
	{Name: "location_name", DataType: "string"},
	{Name: "locality", DataType: "string"},
	{Name: "country_code", DataType: "string"},
	{Name: "country_name", DataType: "string"},
	{Name: "timezone", DataType: "string"},
	{Name: "latitude", DataType: "float"},
	{Name: "longitude", DataType: "float"},
}

// measurementRow 将一条原始测量值与其传感器、站点信息合并为一行
func measurementRow(ref sensorRef, raw map[string]any) map[string]any {
	param := ref.Parameter
	if v, ok := pagination.Lookup(raw, "parameter.name"); ok {
		if s, ok := v.(string); ok {
			param.Name = s
		}
	}
	if v, ok := pagination.Lookup(raw, "parameter.units"); ok {
		if s, ok := v.(string); ok {
			param.Units = s
		}
	}

	return map[string]any{
		"sensor_id":     ref.ID,
		"datetime":      measurementTime(raw),
		"value":         numeric(raw["value"]),
		"parameter":     param.Name,
		"parameter_id":  param.ID,
		"units":         param.Units,
		"location_id":   ref.loc.ID,
		"location_name": ref.loc.Name,
		"locality":      ref.loc.Locality,
		"country_code":  ref.loc.Country.Code,
		"country_name":  ref.loc.Country.Name,
		"timezone":      ref.loc.Timezone,
		"latitude":      ref.loc.Coordinates.Latitude,
		"longitude":     ref.loc.Coordinates.Longitude,
	}
}

// measurementTime 兼容 datetime 字符串、datetime.utc 与 period.datetimeFrom.utc 三种形式
func measurementTime(raw map[string]any) any {
	for _, path := range []string{"datetime.utc", "period.datetimeFrom.utc", "datetime"} {
		if v, ok := pagination.Lookup(raw, path); ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return nil
}

func numeric(v any) any {
	if n, ok := v.(json.Number); ok {
		if f, err := n.Float64(); err == nil {
			return f
		}
	}
	return v
}
