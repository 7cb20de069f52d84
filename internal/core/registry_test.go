package core

import (
	"errors"
	"testing"
)

func TestRegister(t *testing.T) {
	Clear()
	t.Cleanup(Clear)

	Register(DatasetDefinition{
		Info:  DatasetInfo{Key: "Movilidad", FileName: "MasterfileSutel_Movilidad.xlsx", Order: 2},
		Codec: jsonCodec{},
	})
	Register(DatasetDefinition{
		Info:  DatasetInfo{Key: "Fijo", Label: "Red fija", FileName: "MasterfileSutel.xlsx", Order: 1},
		Codec: jsonCodec{},
	})

	if got := DatasetCount(); got != 2 {
		t.Fatalf("DatasetCount() = %d, want 2", got)
	}

	all := All()
	if all[0].Info.Key != "Fijo" || all[1].Info.Key != "Movilidad" {
		t.Errorf("All() order = %s, %s; want Fijo, Movilidad", all[0].Info.Key, all[1].Info.Key)
	}
	if all[1].Info.Label != "Movilidad" {
		t.Errorf("default Label = %q, want key", all[1].Info.Label)
	}

	if _, ok := Get("Otro"); ok {
		t.Error("Get(Otro) found an unregistered dataset")
	}
	if _, err := lookup("Otro"); !errors.Is(err, ErrUnknownDataset) {
		t.Errorf("lookup error = %v, want ErrUnknownDataset", err)
	}
}

func TestRegister_PanicsOnDuplicate(t *testing.T) {
	Clear()
	t.Cleanup(Clear)

	def := DatasetDefinition{Info: DatasetInfo{Key: "Fijo", FileName: "a.xlsx"}, Codec: jsonCodec{}}
	Register(def)

	defer func() {
		if recover() == nil {
			t.Error("Register duplicate did not panic")
		}
	}()
	Register(def)
}

func TestDatasetDefinition_Validate(t *testing.T) {
	tests := []struct {
		name    string
		def     DatasetDefinition
		wantErr bool
	}{
		{"valid", DatasetDefinition{Info: DatasetInfo{Key: "Fijo", FileName: "a.xlsx"}, Codec: jsonCodec{}}, false},
		{"missing key", DatasetDefinition{Info: DatasetInfo{FileName: "a.xlsx"}, Codec: jsonCodec{}}, true},
		{"key with slash", DatasetDefinition{Info: DatasetInfo{Key: "a/b", FileName: "a.xlsx"}, Codec: jsonCodec{}}, true},
		{"no extension", DatasetDefinition{Info: DatasetInfo{Key: "Fijo", FileName: "a"}, Codec: jsonCodec{}}, true},
		{"no codec", DatasetDefinition{Info: DatasetInfo{Key: "Fijo", FileName: "a.xlsx"}}, true},
		{
			"reserved key column",
			DatasetDefinition{Info: DatasetInfo{Key: "Fijo", FileName: "a.xlsx"}, Codec: jsonCodec{}, KeyColumn: RowKeyColumn},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.def.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDatasetInfo_Names(t *testing.T) {
	info := DatasetInfo{FileName: "MasterfileSutel_Movilidad.xlsx"}
	if info.BaseName() != "MasterfileSutel_Movilidad" || info.Ext() != "xlsx" {
		t.Errorf("BaseName/Ext = %q/%q", info.BaseName(), info.Ext())
	}
}
