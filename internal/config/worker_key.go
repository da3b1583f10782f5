package config

type WorkerKeyStruct struct {
	PersistResponsesQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistResponsesQueue: "persist_responses_queue",
}
