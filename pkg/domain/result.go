package domain

type ResultStatus string

const (
	ResultDownloading ResultStatus = "downloading"
	ResultDownloaded  ResultStatus = "downloaded"
	ResultExtracting  ResultStatus = "extracting"
	ResultExtracted   ResultStatus = "extracted"
	ResultFinished    ResultStatus = "finished"
	ResultFailed      ResultStatus = "failed"
	ResultUnknown     ResultStatus = "unknown"
)

func (s ResultStatus) String() string {
	return string(s)
}

// download id of results synthesized without execution.
const DemoDownloadId = "DEMO"

type Result struct {
	Id         string
	TrainId    string
	DownloadId string
	Status     ResultStatus
}
