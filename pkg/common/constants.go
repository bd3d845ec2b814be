package common

const (
	RedisStreamTradeSignal = "trade.signal"

	RedisStreamGroup    = "signal-group"
	RedisStreamConsumer = "signal-consumer"

	SnapshotCacheKeyPrefix = "snapshot"
)
