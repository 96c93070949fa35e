package redis

const (
	// putSnapshotScript atomically replaces the widget snapshot, bumps the
	// refresh sequence and notifies subscribers.
	putSnapshotScript = `
local snapshot_key = KEYS[1]   -- kfocus:snapshot
local seq_key = KEYS[2]        -- kfocus:snapshot:seq
local channel = ARGV[1]        -- kfocus:snapshot:refresh

redis.call('DEL', snapshot_key)
redis.call('HSET', snapshot_key,
  'id', ARGV[2],
  'generated_at', ARGV[3],
  'today_seconds', ARGV[4],
  'yesterday_seconds', ARGV[5],
  'weekly_total_seconds', ARGV[6],
  'percentage_change', ARGV[7],
  'best_streak_days', ARGV[8],
  'best_streak_filter', ARGV[9],
  'best_streak_record', ARGV[10]
)

local seq = redis.call('INCR', seq_key)
redis.call('PUBLISH', channel, seq)

return seq
`

	// setToggleScript records a filter toggle and announces real changes
	// so running daemons can resync their streaks.
	setToggleScript = `
local toggles_key = KEYS[1]    -- kfocus:filters
local channel = ARGV[1]        -- kfocus:filters:changed

local filter = ARGV[2]
local enabled = ARGV[3]

local previous = redis.call('HGET', toggles_key, filter)
redis.call('HSET', toggles_key, filter, enabled)
if previous ~= enabled then
  redis.call('PUBLISH', channel, filter)
  return 1
end

return 0
`
)
