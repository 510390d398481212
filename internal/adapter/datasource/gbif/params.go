// file: internal/adapter/datasource/gbif/params.go
package gbif

import "DataAgents/internal/core/port"

// paramKind 决定一个检索参数的取值校验方式
type paramKind int

const (
	kindString paramKind = iota
	kindInt
	kindBool
	kindEnum
	kindCountry
	kindUUID
	// kindRange 接受单个数值或 "lo,hi" 区间，"*" 表示开放端点
	kindRange
	// kindDateRange 接受 yyyy / yyyy-MM / yyyy-MM-dd 或其区间
	kindDateRange
)

type paramSpec struct {
	kind        paramKind
	description string
	example     string
	allowed     []string
	min, max    float64
	// joined 表示值本身含逗号，解析出的子值需重新以逗号拼接为单个参数
	joined bool
}

// 枚举取值，来自 GBIF 词表
var (
	basisOfRecordValues = []string{
		"PRESERVED_SPECIMEN", "FOSSIL_SPECIMEN", "LIVING_SPECIMEN", "OBSERVATION", "HUMAN_OBSERVATION",
		"MACHINE_OBSERVATION", "MATERIAL_SAMPLE", "MATERIAL_CITATION", "OCCURRENCE",
	}
	continentValues = []string{
		"AFRICA", "ANTARCTICA", "ASIA", "OCEANIA", "EUROPE", "NORTH_AMERICA", "SOUTH_AMERICA",
	}
	occurrenceStatusValues = []string{"PRESENT", "ABSENT"}
	licenseValues          = []string{"CC0_1_0", "CC_BY_4_0", "CC_BY_NC_4_0", "UNSPECIFIED", "UNSUPPORTED"}
	mediaTypeValues        = []string{"StillImage", "MovingImage", "Sound"}
)

// searchParams 是 occurrence/search 接受的参数表，同时作为该适配器的参数目录
var searchParams = map[string]paramSpec{
	"q":              {kind: kindString, description: "全文检索，可以是单词或短语", example: "Puma concolor"},
	"scientificName": {kind: kindString, description: "GBIF 骨干分类中的学名，包含同物异名", example: "Quercus robur"},
	"taxonKey":       {kind: kindInt, description: "分类键，包含下级与同物异名", example: "2476674"},
	"kingdomKey":     {kind: kindInt, description: "界分类键", example: "1"},
	"phylumKey":      {kind: kindInt, description: "门分类键", example: "54"},
	"classKey":       {kind: kindInt, description: "纲分类键", example: "216"},
	"orderKey":       {kind: kindInt, description: "目分类键", example: "797"},
	"familyKey":      {kind: kindInt, description: "科分类键", example: "6950"},
	"genusKey":       {kind: kindInt, description: "属分类键", example: "1977775"},
	"speciesKey":     {kind: kindInt, description: "种分类键", example: "5148248"},

	"country":            {kind: kindCountry, description: "记录所在国家的 ISO-3166-1 两字母代码", example: "US"},
	"publishingCountry":  {kind: kindCountry, description: "发布机构所在国家的两字母代码", example: "US"},
	"continent":          {kind: kindEnum, description: "GBIF 大洲词表", example: "NORTH_AMERICA", allowed: continentValues},
	"decimalLatitude":    {kind: kindRange, description: "WGS84 纬度，支持区间", example: "40.5,45", min: -90, max: 90},
	"decimalLongitude":   {kind: kindRange, description: "WGS84 经度，支持区间", example: "-120,-95.5", min: -180, max: 180},
	"elevation":          {kind: kindRange, description: "海拔（米），支持区间", example: "0,1000", min: -11000, max: 9000},
	"depth":              {kind: kindRange, description: "深度（米），支持区间", example: "0,50", min: 0, max: 11000},
	"geometry":           {kind: kindString, joined: true, description: "WKT 多边形范围", example: "POLYGON ((30.1 10.1, 40 40, 20 40, 10 20, 30.1 10.1))"},
	"geoDistance":        {kind: kindString, joined: true, description: "距某坐标一定距离以内", example: "90,100,5km"},
	"hasCoordinate":      {kind: kindBool, description: "只返回带坐标的记录", example: "true"},
	"hasGeospatialIssue": {kind: kindBool, description: "包含/排除有空间问题的记录", example: "false"},

	"year":      {kind: kindRange, description: "四位年份，支持区间", example: "2020", min: 1000, max: 9999},
	"month":     {kind: kindRange, description: "月份 1-12，支持区间", example: "5", min: 1, max: 12},
	"day":       {kind: kindRange, description: "日 1-31，支持区间", example: "15", min: 1, max: 31},
	"eventDate": {kind: kindDateRange, description: "ISO 8601 日期 yyyy, yyyy-MM 或 yyyy-MM-dd，支持区间", example: "2020-01-01,2020-12-31"},

	"datasetKey":      {kind: kindUUID, description: "数据集键 (UUID)", example: "13b70480-bd69-11dd-b15f-b8a03c50a862"},
	"publishingOrg":   {kind: kindUUID, description: "发布机构键 (UUID)", example: "e2e717bf-551a-4917-bdc9-4fa0f342c530"},
	"institutionCode": {kind: kindString, description: "机构代码", example: "GBIF"},
	"collectionCode":  {kind: kindString, description: "馆藏代码", example: "Specimens"},
	"recordedBy":      {kind: kindString, description: "记录人", example: "Charles Darwin"},

	"basisOfRecord":    {kind: kindEnum, description: "GBIF BasisOfRecord 词表", example: "PRESERVED_SPECIMEN", allowed: basisOfRecordValues},
	"occurrenceStatus": {kind: kindEnum, description: "出现/未出现", example: "PRESENT", allowed: occurrenceStatusValues},
	"license":          {kind: kindEnum, description: "数据许可", example: "CC0_1_0", allowed: licenseValues},
	"mediaType":        {kind: kindEnum, description: "多媒体类型", example: "StillImage", allowed: mediaTypeValues},
	"issue":            {kind: kindString, description: "GBIF OccurrenceIssue 解释问题", example: "COUNTRY_COORDINATE_MISMATCH"},

	"limit":  {kind: kindInt, description: "返回的总记录数上限（分页自动完成，每页最多 300）", example: "20", min: 1, max: maxLimit},
	"offset": {kind: kindInt, description: "起始偏移，最大 100000", example: "0", min: 0, max: maxOffset},

	"facet":            {kind: kindString, description: "统计最常见取值的字段名", example: "basisOfRecord"},
	"facetMincount":    {kind: kindInt, description: "忽略计数小于该值的分面", example: "1"},
	"facetMultiselect": {kind: kindBool, description: "分面包含未被过滤的取值", example: "true"},
	"facetLimit":       {kind: kindInt, description: "分面分页大小", example: "10"},
	"facetOffset":      {kind: kindInt, description: "分面分页偏移", example: "0"},
}

// occurrenceFields 是检索结果中常见的记录字段
var occurrenceFields = []port.Column{
	{Name: "key", DataType: "integer"},
	{Name: "gbifID", DataType: "string"},
	{Name: "occurrenceID", DataType: "string"},
	{Name: "catalogNumber", DataType: "string"},
	{Name: "scientificName", DataType: "string"},
	{Name: "acceptedScientificName", DataType: "string"},
	{Name: "taxonKey", DataType: "integer"},
	{Name: "acceptedTaxonKey", DataType: "integer"},
	{Name: "kingdom", DataType: "string"},
	{Name: "kingdomKey", DataType: "integer"},
	{Name: "phylum", DataType: "string"},
	{Name: "phylumKey", DataType: "integer"},
	{Name: "class", DataType: "string"},
	{Name: "classKey", DataType: "integer"},
	{Name: "order", DataType: "string"},
	{Name: "orderKey", DataType: "integer"},
	{Name: "family", DataType: "string"},
	{Name: "familyKey", DataType: "integer"},
	{Name: "genus", DataType: "string"},
	{Name: "genusKey", DataType: "integer"},
	{Name: "species", DataType: "string"},
	{Name: "speciesKey", DataType: "integer"},
	{Name: "taxonRank", DataType: "string"},
	{Name: "taxonomicStatus", DataType: "string"},
	{Name: "country", DataType: "string"},
	{Name: "countryCode", DataType: "string"},
	{Name: "continent", DataType: "string"},
	{Name: "stateProvince", DataType: "string"},
	{Name: "locality", DataType: "string"},
	{Name: "decimalLatitude", DataType: "float"},
	{Name: "decimalLongitude", DataType: "float"},
	{Name: "coordinateUncertaintyInMeters", DataType: "float"},
	{Name: "elevation", DataType: "float"},
	{Name: "depth", DataType: "float"},
	{Name: "year", DataType: "integer"},
	{Name: "month", DataType: "integer"},
	{Name: "day", DataType: "integer"},
	{Name: "eventDate", DataType: "string"},
	{Name: "datasetKey", DataType: "string"},
	{Name: "datasetName", DataType: "string"},
	{Name: "publishingOrgKey", DataType: "string"},
	{Name: "publishingCountry", DataType: "string"},
	{Name: "institutionCode", DataType: "string"},
	{Name: "collectionCode", DataType: "string"},
	{Name: "basisOfRecord", DataType: "string"},
	{Name: "occurrenceStatus", DataType: "string"},
	{Name: "individualCount", DataType: "integer"},
	{Name: "license", DataType: "string"},
	{Name: "recordedBy", DataType: "string"},
	{Name: "identifiedBy", DataType: "string"},
	{Name: "lastInterpreted", DataType: "string"},
	{Name: "issues", DataType: "array"},
}
