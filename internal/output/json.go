package output

import (
	"encoding/json"
	"io"

	"github.com/buemura/scanhub/pkg/types"
)

// JSONFormatter renders jobs as indented JSON in the API's shapes.
type JSONFormatter struct{}

func (f *JSONFormatter) FormatScan(w io.Writer, job *types.ScanJob, vulns []types.Vulnerability) error {
	if vulns == nil {
		return encode(w, job)
	}
	return encode(w, struct {
		*types.ScanJob
		Vulnerabilities []types.Vulnerability `json:"vulnerabilities"`
	}{job, vulns})
}

func (f *JSONFormatter) FormatList(w io.Writer, jobs []*types.ScanJob) error {
	if jobs == nil {
		jobs = []*types.ScanJob{}
	}
	return encode(w, jobs)
}

func encode(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
