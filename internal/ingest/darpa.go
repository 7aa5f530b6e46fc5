package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/d60-Lab/pumproom/internal/model"
)

// CDM 记录类型，datum 的 key 带版本前缀（如 com.bbn.tc.schema.avro.cdm18.Subject），按后缀匹配
const (
	cdmSubject     = "Subject"
	cdmFile        = "FileObject"
	cdmNetFlow     = "NetFlowObject"
	cdmRegistryKey = "RegistryKeyObject"
	cdmHost        = "Host"
	cdmEvent       = "Event"
)

type cdmRecord struct {
	Datum map[string]json.RawMessage `json:"datum"`
}

type cdmEvt struct {
	Type             string          `json:"type"`
	Subject          json.RawMessage `json:"subject"`
	PredicateObject  json.RawMessage `json:"predicateObject"`
	PredicateObject2 json.RawMessage `json:"predicateObject2"`
}

type pendingEdge struct {
	src, dst, relation string
}

// ParseDARPATC 读取 DARPA Transparent Computing CDM 记录，每行一个 JSON datum。
// 引用了未声明实体的事件跳过
func ParseDARPATC(r io.Reader) (*Graph, error) {
	g := newGraph()
	var pending []pendingEdge

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var rec cdmRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		for typ, body := range rec.Datum {
			var m map[string]any
			if err := json.Unmarshal(body, &m); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			switch suffix(typ) {
			case cdmSubject:
				id := str(m["uuid"])
				label := str(dig(m, "properties", "map", "name"))
				if label == "" {
					label = baseName(firstWord(unionString(m["cmdLine"])))
				}
				key := g.node(cdmKey(id), model.NodeProcess, label, map[string]any{
					"uuid": id, "pid": m["cid"], "cmdline": unionString(m["cmdLine"]),
				})
				if parent := unionString(m["parentSubject"]); parent != "" {
					pending = append(pending, pendingEdge{cdmKey(parent), key, "spawned"})
				}
			case cdmFile:
				id := str(m["uuid"])
				path := str(dig(m, "baseObject", "properties", "map", "path"))
				if path == "" {
					path = str(dig(m, "baseObject", "properties", "map", "filename"))
				}
				g.node(cdmKey(id), model.NodeFile, baseName(path), map[string]any{"uuid": id, "path": path})
			case cdmNetFlow:
				id := str(m["uuid"])
				addr := fmt.Sprintf("%s:%v", unionString(m["remoteAddress"]), unionAny(m["remotePort"]))
				g.node(cdmKey(id), model.NodeNetwork, addr, map[string]any{"uuid": id, "local": fmt.Sprintf("%s:%v", unionString(m["localAddress"]), unionAny(m["localPort"]))})
			case cdmRegistryKey:
				id := str(m["uuid"])
				k := str(m["key"])
				g.node(cdmKey(id), model.NodeRegistry, baseName(k), map[string]any{"uuid": id, "key": k})
			case cdmHost:
				id := str(m["uuid"])
				name := str(m["hostName"])
				g.node(cdmKey(id), model.NodeHost, name, map[string]any{"uuid": id, "os": str(m["osDetails"])})
			case cdmEvent:
				var ev cdmEvt
				if err := json.Unmarshal(body, &ev); err != nil {
					return nil, fmt.Errorf("line %d: %w", line, err)
				}
				subj := rawUUID(ev.Subject)
				obj := rawUUID(ev.PredicateObject)
				if subj == "" || obj == "" {
					g.Skipped++
					continue
				}
				pending = append(pending, pendingEdge{cdmKey(subj), cdmKey(obj), eventRelation(ev.Type)})
				if obj2 := rawUUID(ev.PredicateObject2); obj2 != "" {
					pending = append(pending, pendingEdge{cdmKey(subj), cdmKey(obj2), eventRelation(ev.Type)})
				}
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	for _, e := range pending {
		if !g.has(e.src) || !g.has(e.dst) {
			g.Skipped++
			continue
		}
		g.edge(e.src, e.dst, e.relation)
	}
	return g, nil
}

func cdmKey(uuid string) string { return "cdm:" + uuid }

func suffix(typ string) string {
	if i := strings.LastIndex(typ, "."); i >= 0 {
		return typ[i+1:]
	}
	return typ
}

// eventRelation EVENT_READ -> read
func eventRelation(t string) string {
	return strings.ToLower(strings.TrimPrefix(t, "EVENT_"))
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func dig(m map[string]any, path ...string) any {
	var cur any = m
	for _, p := range path {
		mm, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = mm[p]
	}
	return cur
}

// Avro JSON 把可空字段编码成 {"string": "..."} 之类的 union
func unionAny(v any) any {
	if m, ok := v.(map[string]any); ok && len(m) == 1 {
		for _, inner := range m {
			return inner
		}
	}
	return v
}

func unionString(v any) string {
	return str(unionAny(v))
}

func rawUUID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	return unionString(v)
}

func firstWord(s string) string {
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i]
	}
	return s
}
