package proto

import "time"

// JobMetadata is implemented by the metadata of index, field and document
// operations, which share a state, a time span and progress counters.
type JobMetadata interface {
	Message
	JobState() OperationState
	SetJobState(OperationState)
	SetStartTime(time.Time)
	SetEndTime(time.Time)
	SetProgress(documents, bytes Progress)
}

func (m *IndexOperationMetadata) JobState() OperationState        { return m.State }
func (m *IndexOperationMetadata) SetJobState(s OperationState)    { m.State = s }
func (m *IndexOperationMetadata) SetStartTime(t time.Time)        { m.StartTime = Timestamp(t) }
func (m *IndexOperationMetadata) SetEndTime(t time.Time)          { m.EndTime = Timestamp(t) }
func (m *IndexOperationMetadata) SetProgress(docs, bytes Progress) {
	m.ProgressDocuments, m.ProgressBytes = &docs, &bytes
}

func (m *FieldOperationMetadata) JobState() OperationState        { return m.State }
func (m *FieldOperationMetadata) SetJobState(s OperationState)    { m.State = s }
func (m *FieldOperationMetadata) SetStartTime(t time.Time)        { m.StartTime = Timestamp(t) }
func (m *FieldOperationMetadata) SetEndTime(t time.Time)          { m.EndTime = Timestamp(t) }
func (m *FieldOperationMetadata) SetProgress(docs, bytes Progress) {
	m.ProgressDocuments, m.ProgressBytes = &docs, &bytes
}

func (m *ExportDocumentsMetadata) JobState() OperationState        { return m.OperationState }
func (m *ExportDocumentsMetadata) SetJobState(s OperationState)    { m.OperationState = s }
func (m *ExportDocumentsMetadata) SetStartTime(t time.Time)        { m.StartTime = Timestamp(t) }
func (m *ExportDocumentsMetadata) SetEndTime(t time.Time)          { m.EndTime = Timestamp(t) }
func (m *ExportDocumentsMetadata) SetProgress(docs, bytes Progress) {
	m.ProgressDocuments, m.ProgressBytes = &docs, &bytes
}

func (m *ImportDocumentsMetadata) JobState() OperationState        { return m.OperationState }
func (m *ImportDocumentsMetadata) SetJobState(s OperationState)    { m.OperationState = s }
func (m *ImportDocumentsMetadata) SetStartTime(t time.Time)        { m.StartTime = Timestamp(t) }
func (m *ImportDocumentsMetadata) SetEndTime(t time.Time)          { m.EndTime = Timestamp(t) }
func (m *ImportDocumentsMetadata) SetProgress(docs, bytes Progress) {
	m.ProgressDocuments, m.ProgressBytes = &docs, &bytes
}

func (m *BulkDeleteDocumentsMetadata) JobState() OperationState        { return m.OperationState }
func (m *BulkDeleteDocumentsMetadata) SetJobState(s OperationState)    { m.OperationState = s }
func (m *BulkDeleteDocumentsMetadata) SetStartTime(t time.Time)        { m.StartTime = Timestamp(t) }
func (m *BulkDeleteDocumentsMetadata) SetEndTime(t time.Time)          { m.EndTime = Timestamp(t) }
func (m *BulkDeleteDocumentsMetadata) SetProgress(docs, bytes Progress) {
	m.ProgressDocuments, m.ProgressBytes = &docs, &bytes
}
