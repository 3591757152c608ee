package toolclient

// Tool names exposed by the warranty data service.
const (
	ToolWarrantyDays          = "warranty_days"
	ToolWarrantyHistory       = "warranty_history"
	ToolMaintenanceHistory    = "maintenance_history"
	ToolVehicleRepairsHistory = "vehicle_repairs_history"
	ToolComplianceRAG         = "compliance_rag"
)

// KnownTools lists every tool the data service serves, in catalog order.
func KnownTools() []string {
	return []string{
		ToolWarrantyDays,
		ToolWarrantyHistory,
		ToolMaintenanceHistory,
		ToolVehicleRepairsHistory,
		ToolComplianceRAG,
	}
}
