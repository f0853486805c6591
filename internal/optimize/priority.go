// Package optimize contains the optimization core: the job factory, the
// priority scheduler, the per-job runner, the grid-search engine, and the
// result aggregator. Components coordinate exclusively through the job store.
package optimize

// Priority tiers: 1 is selected first.
const (
	PriorityDataCleaning   = 1
	PrioritySettingsChange = 2
	PriorityInitialImport  = 3
)

// PriorityForReason maps a creation reason to its scheduling priority.
// Data-cleaning reasons outrank settings changes, which outrank bulk imports;
// unknown reasons get the import tier.
func PriorityForReason(reason string) int {
	switch reason {
	case "settings_change", "config":
		return PrioritySettingsChange
	case "csv_upload_data_cleaning", "manual_edit_data_cleaning":
		return PriorityDataCleaning
	case "dataset_upload", "initial_import":
		return PriorityInitialImport
	default:
		return PriorityInitialImport
	}
}
