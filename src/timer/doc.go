// Package timer provides deadlines and periodic ticks on top of the reactor.
//
// Every Timer owns one timerfd. Arming registers a Read job for that
// descriptor, one-shot for deadlines and persistent for periodic timers; the
// job drains the expiration counter and then calls back. Re-arming always
// supersedes the previous setting.
package timer
