package exporter

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"
)

var cborMode = func() cbor.EncMode {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}()

func encodeJSON(req Request) ([]byte, error) {
	data, err := json.MarshalIndent(req.Report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return append(data, '\n'), nil
}

func encodeYAML(req Request) ([]byte, error) {
	data, err := yaml.Marshal(req.Report)
	if err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return data, nil
}

func encodeCBOR(req Request) ([]byte, error) {
	data, err := cborMode.Marshal(req.Report)
	if err != nil {
		return nil, fmt.Errorf("encode cbor: %w", err)
	}
	return data, nil
}
