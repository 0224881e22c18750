package datasource

// mockCatalog holds sample data keyed by dataset name, returned when a live
// query fails and mock fallback is enabled.
var mockCatalog = map[string]ResultSet{
	"模板列表": {
		Columns: []string{"id", "name", "createdAt", "updatedAt", "status"},
		Rows: []Row{
			{"id": 1, "name": "安全审计报告模板", "createdAt": "2024-01-15", "updatedAt": "2024-01-20", "status": "已发布"},
			{"id": 2, "name": "接口安全评估表", "createdAt": "2024-01-16", "updatedAt": "2024-01-21", "status": "草稿"},
			{"id": 3, "name": "漏洞扫描报告", "createdAt": "2024-01-17", "updatedAt": "2024-01-22", "status": "已发布"},
		},
	},
	"审计数据": {
		Columns: []string{"audit_name", "audit_date", "risk_level", "department", "rectification_status"},
		Rows: []Row{
			{"audit_name": "2024年第一季度安全审计", "audit_date": "2024-03-31", "risk_level": "高", "department": "信息安全部", "rectification_status": "整改中"},
			{"audit_name": "接口安全专项检查", "audit_date": "2024-03-15", "risk_level": "中", "department": "开发部", "rectification_status": "已完成"},
			{"audit_name": "数据库权限审计", "audit_date": "2024-03-01", "risk_level": "低", "department": "运维部", "rectification_status": "待处理"},
		},
	},
	"安全事件": {
		Columns: []string{"incident_id", "incident_title", "occurrence_time", "incident_type", "severity"},
		Rows: []Row{
			{"incident_id": "SEC-2024-001", "incident_title": "SQL注入攻击", "occurrence_time": "2024-03-20 14:30", "incident_type": "注入攻击", "severity": "高"},
			{"incident_id": "SEC-2024-002", "incident_title": "XSS跨站脚本", "occurrence_time": "2024-03-21 10:15", "incident_type": "XSS攻击", "severity": "中"},
			{"incident_id": "SEC-2024-003", "incident_title": "弱密码告警", "occurrence_time": "2024-03-22 09:00", "incident_type": "认证安全", "severity": "低"},
		},
	},
	"审计数据库": {
		Columns: []string{"log_count", "system_name", "check_time"},
		Rows: []Row{
			{"log_count": 1286, "system_name": "统一身份认证平台", "check_time": "2024-03-31 18:00"},
			{"log_count": 342, "system_name": "数据共享交换平台", "check_time": "2024-03-31 18:00"},
		},
	},
}

// MockRows returns a copy of the sample rows registered for name.
func MockRows(name string) (*ResultSet, bool) {
	rs, ok := mockCatalog[name]
	if !ok {
		return nil, false
	}
	out := &ResultSet{Columns: append([]string(nil), rs.Columns...), Rows: make([]Row, len(rs.Rows))}
	for i, r := range rs.Rows {
		cp := make(Row, len(r))
		for k, v := range r {
			cp[k] = v
		}
		out.Rows[i] = cp
	}
	return out, true
}

// MockSourceName is the catalog entry used for ad-hoc dynamic field queries.
const MockSourceName = "审计数据库"
