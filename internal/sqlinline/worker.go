package sqlinline

// QSelectClaimCandidates fetches a small batch of queued jobs oldest first.
// The read is unlocked on purpose: claiming happens per candidate via the
// conditional update below, so a stale candidate simply loses the race.
const QSelectClaimCandidates = `--sql 0d4ac7ed-b69f-4bb2-b568-b9a9b0cb202d
select id
from audio_jobs
where status = 'queued'
order by created_at asc
limit $1::int;
`

// QClaimAudioJob is the atomic ownership transition. The status predicate is
// re-evaluated at write time, so across any number of concurrent workers at
// most one update affects the row.
const QClaimAudioJob = `--sql d4470324-572b-4f9b-99d0-21e8b2be13f3
update audio_jobs
set status = 'running', worker_id = $2::text, started_at = now()
where id = $1::uuid and status = 'queued'
returning id, user_id, audio_type, status, duration_sec, preset, text, voice_id,
          worker_id, coalesce(error_message, ''), created_at, started_at, completed_at;
`
