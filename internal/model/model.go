package model

// All 返回需要迁移的全部模型
func All() []any {
	return []any{
		&Reservoir{},
		&Stamp{},
		&Invoice{},
		&Dispatch{},
		&Stream{},
		&Document{},
		&Outbox{},
		&Alert{},
		&Watcher{},
		&Subscription{},
		&Node{},
		&Edge{},
		&IncomingEdge{},
	}
}
