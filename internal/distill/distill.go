// Package distill 把平台原始记录蒸馏成带类型的字段
package distill

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/d60-Lab/pumproom/config"
)

const (
	TypeString = "string"
	TypeInt    = "int"
	TypeFloat  = "float"
	TypeBool   = "bool"
	TypeTime   = "time"
)

// Field 源路径（点分）到输出字段的映射
type Field struct {
	Name string
	Path string
	Type string
}

// Bottle distillery 的有序字段布局
type Bottle struct {
	Fields []Field
}

// Result 蒸馏结果及逐字段的转换错误
type Result struct {
	Fields map[string]any    `json:"fields"`
	Errors map[string]string `json:"errors,omitempty"`
}

// Distillery 把 bottle 绑定到一个水库
type Distillery struct {
	Name      string
	Reservoir string
	Bottle    Bottle
}

func FromConfig(c config.DistilleryConfig) *Distillery {
	fields := make([]Field, 0, len(c.Fields))
	for _, f := range c.Fields {
		typ := f.Type
		if typ == "" {
			typ = TypeString
		}
		fields = append(fields, Field{Name: f.Name, Path: f.Path, Type: typ})
	}
	return &Distillery{Name: c.Name, Reservoir: c.Reservoir, Bottle: Bottle{Fields: fields}}
}

// Distill 提取全部字段；缺失路径跳过，转换失败记入 Errors 但不中断
func (b Bottle) Distill(rec map[string]any) Result {
	res := Result{Fields: make(map[string]any, len(b.Fields))}
	for _, f := range b.Fields {
		raw, ok := Lookup(rec, f.Path)
		if !ok || raw == nil {
			continue
		}
		v, err := Coerce(raw, f.Type)
		if err != nil {
			if res.Errors == nil {
				res.Errors = make(map[string]string)
			}
			res.Errors[f.Name] = err.Error()
			continue
		}
		res.Fields[f.Name] = v
	}
	return res
}

// Lookup 解析点分路径。本身含点的键（ES / Splunk 扁平字段）优先于逐层查找，
// 数字段作为数组下标
func Lookup(rec map[string]any, path string) (any, bool) {
	if rec == nil || path == "" {
		return nil, false
	}
	if v, ok := rec[path]; ok {
		return v, true
	}
	for i := len(path) - 1; i > 0; i-- {
		if path[i] != '.' {
			continue
		}
		head, rest := path[:i], path[i+1:]
		v, ok := rec[head]
		if !ok {
			continue
		}
		if got, ok := descend(v, rest); ok {
			return got, true
		}
	}
	return nil, false
}

func descend(v any, rest string) (any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return Lookup(t, rest)
	case []any:
		seg, tail, _ := strings.Cut(rest, ".")
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(t) {
			return nil, false
		}
		if tail == "" {
			return t[idx], true
		}
		return descend(t[idx], tail)
	}
	return nil, false
}

// Coerce 把 JSON 解码出的值转换成字段类型
func Coerce(v any, typ string) (any, error) {
	switch typ {
	case TypeString, "":
		return toString(v)
	case TypeInt:
		return toInt(v)
	case TypeFloat:
		return toFloat(v)
	case TypeBool:
		return cast.ToBoolE(trim(v))
	case TypeTime:
		return toTime(v)
	}
	return nil, fmt.Errorf("unknown field type %q", typ)
}

func trim(v any) any {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return v
}

func toString(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
	return cast.ToStringE(v)
}

func toInt(v any) (any, error) {
	switch t := v.(type) {
	case float64:
		return floatToInt(t)
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", t)
		}
		return floatToInt(f)
	}
	return cast.ToInt64E(trim(v))
}

// floatToInt 拒绝小数、NaN/Inf 和超出 int64 的值
func floatToInt(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%v is not finite", f)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%v is not an integer", f)
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%v overflows int64", f)
	}
	return int64(f), nil
}

func toFloat(v any) (any, error) {
	f, err := cast.ToFloat64E(trim(v))
	if err != nil {
		return nil, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%v is not finite", f)
	}
	return f, nil
}

func toTime(v any) (any, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		s := strings.TrimSpace(t)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return epoch(f)
		}
		ts, err := cast.ToTimeInDefaultLocationE(s, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("unrecognized time %q", t)
		}
		return ts.UTC(), nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return nil, fmt.Errorf("cannot convert %T to time", v)
	}
	return epoch(f)
}

// maxEpoch 按毫秒也已在三百万年之后，再大就不是时间戳了
const maxEpoch = 1e17

// epoch 大于 1e12 视为毫秒
func epoch(f float64) (time.Time, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) >= maxEpoch {
		return time.Time{}, fmt.Errorf("%v is not a valid epoch", f)
	}
	if f > 1e12 {
		return time.UnixMilli(int64(f)).UTC(), nil
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
}
