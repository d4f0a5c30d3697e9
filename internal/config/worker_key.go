package config

type WorkerKeyStruct struct {
	PersistSnapshotsQueue  string
	PersistResultsQueue    string
	PersistViolationsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistSnapshotsQueue:  "persist_snapshots_queue",
	PersistResultsQueue:    "persist_results_queue",
	PersistViolationsQueue: "persist_violations_queue",
}
