package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/partyzanex/mydump/pkg/dump"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Manifest describes the content of a dump.
type Manifest struct {
	Database     string               `json:"database" yaml:"database"`
	CreatedAt    time.Time            `json:"createdAt" yaml:"createdAt"`
	MasterStatus *dump.BinlogPosition `json:"masterStatus,omitempty" yaml:"masterStatus,omitempty"`
	Tables       []ManifestTable      `json:"tables" yaml:"tables"`
}

type ManifestTable struct {
	Name     string           `json:"name" yaml:"name"`
	IsView   bool             `json:"isView" yaml:"isView"`
	Columns  []ManifestColumn `json:"columns" yaml:"columns"`
	Triggers int              `json:"triggers" yaml:"triggers"`
	Schema   bool             `json:"schema" yaml:"schema"`
	Data     bool             `json:"data" yaml:"data"`
}

type ManifestColumn struct {
	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type" yaml:"type"`
	Nullable bool   `json:"nullable" yaml:"nullable"`
}

// NewManifest builds the manifest of result; columns keep definition order.
func NewManifest(database string, result *dump.DumpReturn) Manifest {
	m := Manifest{
		Database:     database,
		CreatedAt:    time.Now().UTC(),
		MasterStatus: result.MasterStatus,
		Tables:       make([]ManifestTable, 0, len(result.Tables)),
	}

	for _, table := range result.Tables {
		mt := ManifestTable{
			Name:     table.Name,
			IsView:   table.IsView,
			Columns:  make([]ManifestColumn, 0, len(table.ColumnsOrdered)),
			Triggers: len(table.Triggers),
			Schema:   table.Schema.Valid && table.Schema.String != "",
			Data:     table.Data.Valid && table.Data.String != "",
		}

		for _, name := range table.ColumnsOrdered {
			column := table.Columns[name]

			mt.Columns = append(mt.Columns, ManifestColumn{
				Name:     name,
				Type:     column.Type,
				Nullable: column.Nullable,
			})
		}

		m.Tables = append(m.Tables, mt)
	}

	return m
}

// WriteManifest writes m as yaml for .yaml and .yml paths and as json otherwise.
func WriteManifest(path string, m Manifest) error {
	var (
		b   []byte
		err error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		b, err = yaml.Marshal(m)
	default:
		b, err = json.MarshalIndent(m, "", "  ")
	}

	if err != nil {
		return errors.Wrap(err, "unable to encode manifest")
	}

	err = os.WriteFile(path, b, 0644)
	if err != nil {
		return errors.Wrapf(err, "unable to write manifest %s", path)
	}

	return nil
}
