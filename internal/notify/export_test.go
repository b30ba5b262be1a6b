package notify

var KafkaMessage = kafkaMessage
