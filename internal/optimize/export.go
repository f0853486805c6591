package optimize

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

var exportHeader = []string{
	"job_id",
	"sku",
	"model_id",
	"method",
	"batch_id",
	"dataset_identifier",
	"parameters",
	"mape",
	"rmse",
	"mae",
	"accuracy",
	"norm_mape",
	"norm_rmse",
	"norm_mae",
	"norm_accuracy",
	"composite_score",
	"is_best_result",
	"reasoning",
}

// ExportCSV writes every scored attempt in the aggregation as one CSV row.
// Parameters are embedded as a JSON object so the column stays machine
// readable regardless of which model produced the row.
func ExportCSV(w io.Writer, agg Aggregation) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	for _, a := range agg.Attempts {
		params, err := json.Marshal(a.Parameters)
		if err != nil {
			return fmt.Errorf("encoding parameters for job %s: %w", a.JobID, err)
		}

		record := []string{
			a.JobID.String(),
			a.SKU,
			a.ModelID,
			a.Method,
			a.BatchID.String(),
			a.DatasetIdentifier,
			string(params),
			formatMetric(a.MAPE),
			formatMetric(a.RMSE),
			formatMetric(a.MAE),
			formatMetric(a.Accuracy),
			formatMetric(a.NormMAPE),
			formatMetric(a.NormRMSE),
			formatMetric(a.NormMAE),
			formatMetric(a.NormAccuracy),
			formatMetric(a.CompositeScore),
			strconv.FormatBool(a.IsBest),
			a.Reasoning,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing csv row for job %s: %w", a.JobID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatMetric(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
