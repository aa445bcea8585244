// Package cronexpr validates cron expressions and computes next fire times.
//
// Expressions use the classic crontab order with an optional trailing seconds
// field:
//
//	minute hour day-of-month month weekday [second]
//
// The matching itself is delegated to github.com/robfig/cron/v3.
package cronexpr
