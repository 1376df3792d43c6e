package types

// LogicalTime 逻辑时间（HLAinteger64Time，单位微秒）
type LogicalTime int64

// LogicalTimeInterval 逻辑时间间隔（单位微秒）
type LogicalTimeInterval int64

// NextTimeStep 返回下一个时间步
//
// nextTimeStep = present + lookahead
func NextTimeStep(present LogicalTime, lookahead LogicalTimeInterval) LogicalTime {
	return present + LogicalTime(lookahead)
}

// LogicalTimeBoundary 返回严格大于 galt 的最小 lcts 整数倍
//
// boundary = (floor(galt / lcts) + 1) * lcts
//
// galt 为负时同样按向下取整处理；lcts 必须为正。
func LogicalTimeBoundary(galt LogicalTime, lcts LogicalTimeInterval) LogicalTime {
	step := int64(lcts)
	q := int64(galt) / step
	if int64(galt)%step != 0 && galt < 0 {
		q--
	}
	return LogicalTime((q + 1) * step)
}
