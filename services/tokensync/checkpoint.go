package tokensync

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Progress is the durable snapshot of an in-flight extraction run. It
// exists for crash forensics: resumption is a human reading the artifact
// and restarting with the recorded offset.
type Progress struct {
	Offset        int               `json:"offset"`
	TotalMappings int               `json:"total_mappings"`
	Timestamp     int64             `json:"timestamp"`
	Mappings      map[string]string `json:"mappings"`
}

// Checkpointer writes write-once progress artifacts, one file per
// checkpoint named by its creation time so a run's history stays
// auditable.
type Checkpointer struct {
	Dir string
}

func (c Checkpointer) Write(p Progress) (string, error) {
	if p.Timestamp == 0 {
		p.Timestamp = time.Now().Unix()
	}
	name := fmt.Sprintf("extraction_progress_%d.json", p.Timestamp)

	contents, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", err
	}

	// O_EXCL keeps artifacts immutable: a second checkpoint in the same
	// second fails rather than clobbering the prior snapshot.
	f, err := os.OpenFile(filepath.Join(c.Dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}
	defer f.Close()

	_, err = f.Write(contents)
	if err != nil {
		return "", err
	}
	return name, nil
}

// ReadProgress loads a checkpoint artifact, used by the inspection CLI.
func ReadProgress(path string) (Progress, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return Progress{}, err
	}
	var p Progress
	err = json.Unmarshal(contents, &p)
	if err != nil {
		return Progress{}, err
	}
	return p, nil
}
