package config

const (
	// TopicReindex carries knowledge base rebuild and incremental update tasks.
	TopicReindex = "knowledge.reindex"

	// ChannelReindex is the consumer channel the backend worker reads TopicReindex from.
	ChannelReindex = "backend"
)
