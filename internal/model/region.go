package model

import (
	"sort"
	"strings"
)

// RegionInfo 行政区划信息（市、县、经纬度）
type RegionInfo struct {
	Prefecture string   `json:"shi"`
	County     string   `json:"xian"`
	Longitude  *float64 `json:"lgtd"`
	Latitude   *float64 `json:"lttd"`
}

// RegionEntry 团场列表项
type RegionEntry struct {
	RegionID string `json:"aid"`
	RegionInfo
}

type regionCoord struct {
	prefecture, county string
	lgtd, lttd         float64
}

// 第一师各团：adcd 前四位 6611，团场 661101-661116
var regionTable = map[string]regionCoord{
	"661101": {"第一师", "第一团", 80.1, 40.2},
	"661102": {"第一师", "第二团", 80.3, 40.4},
	"661103": {"第一师", "第三团", 80.5, 40.6},
	"661104": {"第一师", "第四团", 80.7, 40.8},
	"661105": {"第一师", "第五团", 80.9, 40.3},
	"661106": {"第一师", "第六团", 81.1, 40.7},
	"661107": {"第一师", "第七团", 81.3, 40.9},
	"661108": {"第一师", "第八团", 81.5, 41.1},
	"661109": {"第一师", "第九团", 81.7, 41.3},
	"661110": {"第一师", "第十团", 81.9, 41.5},
	"661111": {"第一师", "第十一团", 82.1, 41.7},
	"661112": {"第一师", "第十二团", 82.3, 41.9},
	"661113": {"第一师", "第十三团", 82.5, 42.1},
	"661115": {"第一师", "第十五团", 82.7, 42.3},
	"661116": {"第一师", "第十六团", 82.9, 42.5},
	"123123": {"测试市", "测试县", 120.0, 30.0},
}

const (
	fallbackLongitude = 80.0
	fallbackLatitude  = 40.0
)

// LookupRegion 根据 aid 获取市县信息；未登记的 aid 返回占位名称与默认坐标
func LookupRegion(regionID *string) RegionInfo {
	if regionID == nil {
		return RegionInfo{}
	}
	aid := strings.TrimSpace(*regionID)
	if aid == "" {
		return RegionInfo{}
	}
	if c, ok := regionTable[aid]; ok {
		return c.info()
	}
	return regionCoord{"第一师", "第" + aid + "团", fallbackLongitude, fallbackLatitude}.info()
}

// Regions 返回全部登记的团场（按 aid 排序）
func Regions() []RegionEntry {
	out := make([]RegionEntry, 0, len(regionTable))
	for aid, c := range regionTable {
		out = append(out, RegionEntry{RegionID: aid, RegionInfo: c.info()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegionID < out[j].RegionID })
	return out
}

func (c regionCoord) info() RegionInfo {
	lgtd, lttd := c.lgtd, c.lttd
	return RegionInfo{
		Prefecture: c.prefecture,
		County:     c.county,
		Longitude:  &lgtd,
		Latitude:   &lttd,
	}
}
