package sqsgath

import (
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type sqsResQueueGatherer struct {
	sqsClient *sqs.Client
	queueUrl  string
	execUuid  string
}
