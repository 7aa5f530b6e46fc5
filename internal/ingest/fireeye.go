package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/d60-Lab/pumproom/internal/model"
)

type axReport struct {
	Alert []axAlert `json:"alert"`
}

type axAlert struct {
	ID          json.Number   `json:"id"`
	Src         axHost        `json:"src"`
	Explanation axExplanation `json:"explanation"`
}

type axHost struct {
	Host string `json:"host"`
	IP   string `json:"ip"`
}

type axExplanation struct {
	OSChanges []axOSChanges `json:"os-changes"`
}

type axOSChanges struct {
	Process []axProcess `json:"process"`
	File    []axObject  `json:"file"`
	Regkey  []axObject  `json:"regkey"`
	Network []axNetwork `json:"network"`
}

type axProcess struct {
	PID        json.Number `json:"pid"`
	PPID       json.Number `json:"ppid"`
	Value      string      `json:"value"`
	Mode       string      `json:"mode"`
	ParentName string      `json:"parentname"`
	Cmdline    string      `json:"cmdline"`
	MD5        string      `json:"md5sum"`
}

type axProcInfo struct {
	PID       json.Number `json:"pid"`
	ImagePath string      `json:"imagepath"`
}

type axObject struct {
	Value       string     `json:"value"`
	Mode        string     `json:"mode"`
	ProcessInfo axProcInfo `json:"processinfo"`
}

type axNetwork struct {
	IPAddress   string      `json:"ipaddress"`
	Hostname    string      `json:"hostname"`
	DestPort    json.Number `json:"destination_port"`
	Protocol    string      `json:"protocol_type"`
	Mode        string      `json:"mode"`
	ProcessInfo axProcInfo  `json:"processinfo"`
}

// ParseFireEyeAX 读取 FireEye AX 的 JSON 告警报告
func ParseFireEyeAX(r io.Reader) (*Graph, error) {
	var rep axReport
	if err := json.NewDecoder(r).Decode(&rep); err != nil {
		return nil, fmt.Errorf("decode fireeye ax report: %w", err)
	}
	g := newGraph()
	for _, a := range rep.Alert {
		host := ""
		if a.Src.Host != "" || a.Src.IP != "" {
			name := a.Src.Host
			if name == "" {
				name = a.Src.IP
			}
			host = g.node(objectKey(model.NodeHost, name), model.NodeHost, name, map[string]any{"ip": a.Src.IP, "alert_id": a.ID.String()})
		}
		for _, oc := range a.Explanation.OSChanges {
			for _, p := range oc.Process {
				key := g.node(processKey(p.PID.String(), p.Value), model.NodeProcess, baseName(p.Value), map[string]any{
					"pid": p.PID.String(), "path": p.Value, "cmdline": p.Cmdline, "md5": p.MD5,
				})
				if host != "" {
					g.edge(host, key, "ran")
				}
				if p.ParentName != "" {
					parent := g.node(processKey(p.PPID.String(), p.ParentName), model.NodeProcess, baseName(p.ParentName), map[string]any{
						"pid": p.PPID.String(), "path": p.ParentName,
					})
					g.edge(parent, key, relation(p.Mode, "spawned"))
				}
			}
			for _, f := range oc.File {
				g.objectEdge(f.ProcessInfo, model.NodeFile, f.Value, baseName(f.Value), relation(f.Mode, "touched"))
			}
			for _, k := range oc.Regkey {
				g.objectEdge(k.ProcessInfo, model.NodeRegistry, k.Value, baseName(k.Value), relation(k.Mode, "touched"))
			}
			for _, n := range oc.Network {
				addr := n.IPAddress
				if addr == "" {
					addr = n.Hostname
				}
				if n.DestPort.String() != "" {
					addr = addr + ":" + n.DestPort.String()
				}
				g.objectEdge(n.ProcessInfo, model.NodeNetwork, addr, addr, relation(n.Mode, "connected"))
			}
		}
	}
	return g, nil
}

func (g *Graph) objectEdge(pi axProcInfo, kind, value, label, rel string) {
	if value == "" {
		g.Skipped++
		return
	}
	obj := g.node(objectKey(kind, value), kind, label, map[string]any{"value": value})
	if pi.ImagePath == "" && pi.PID.String() == "" {
		return
	}
	proc := g.node(processKey(pi.PID.String(), pi.ImagePath), model.NodeProcess, baseName(pi.ImagePath), map[string]any{
		"pid": pi.PID.String(), "path": pi.ImagePath,
	})
	g.edge(proc, obj, rel)
}

func relation(mode, fallback string) string {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		return fallback
	}
	return strings.ReplaceAll(mode, " ", "_")
}
