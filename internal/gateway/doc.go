// Package gateway — приём задач и чтение их статуса.
//
// Service — единственная точка, через которую HTTP-слой и CLI попадают
// в хранилище задач. Submit публикует первый конверт и только после
// подтверждения брокера создаёт задачу; Status и List только читают.
package gateway
