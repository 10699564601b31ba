package kafka

const (
	// TopicProvisioningJobs is the name of the Kafka topic for job lifecycle events.
	TopicProvisioningJobs = "provisioning_jobs"
)
