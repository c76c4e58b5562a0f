package events

import (
	"encoding/json"
	"fmt"
)

// SetStageData sets the Data field with StageData in a type-safe way.
func (e *Event) SetStageData(data StageData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert StageData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetStageData retrieves StageData from the Data field.
func (e *Event) GetStageData() (*StageData, error) {
	var data StageData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse StageData: %w", err)
	}
	return &data, nil
}

// SetToolchainData sets the Data field with ToolchainData in a type-safe way.
func (e *Event) SetToolchainData(data ToolchainData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert ToolchainData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetToolchainData retrieves ToolchainData from the Data field.
func (e *Event) GetToolchainData() (*ToolchainData, error) {
	var data ToolchainData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse ToolchainData: %w", err)
	}
	return &data, nil
}

// SetJobSubmittedData sets the Data field with JobSubmittedData in a type-safe way.
func (e *Event) SetJobSubmittedData(data JobSubmittedData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert JobSubmittedData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetJobSubmittedData retrieves JobSubmittedData from the Data field.
func (e *Event) GetJobSubmittedData() (*JobSubmittedData, error) {
	var data JobSubmittedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse JobSubmittedData: %w", err)
	}
	return &data, nil
}

// SetPollTickData sets the Data field with PollTickData in a type-safe way.
func (e *Event) SetPollTickData(data PollTickData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert PollTickData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetPollTickData retrieves PollTickData from the Data field.
func (e *Event) GetPollTickData() (*PollTickData, error) {
	var data PollTickData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse PollTickData: %w", err)
	}
	return &data, nil
}

// structToMap converts a struct to a map[string]interface{} using JSON marshaling.
func structToMap(data interface{}) (map[string]interface{}, error) {
	bytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	if err := json.Unmarshal(bytes, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// mapToStruct converts a map[string]interface{} to a struct using JSON unmarshaling.
func mapToStruct(dataMap map[string]interface{}, target interface{}) error {
	bytes, err := json.Marshal(dataMap)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, target)
}
