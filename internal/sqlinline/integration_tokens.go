package sqlinline

const QSelectIntegrationToken = `--sql 3c1f9b0e-5a77-4d6b-9e2f-8c04d1a6b5f2
select token
from integration_tokens
where provider = $1::text
limit 1;
`

const QUpsertIntegrationToken = `--sql b7e2a914-6c3d-4f08-a5d1-2ef9c8b07361
insert into integration_tokens (id, provider, token, properties, created_at, updated_at)
values (gen_random_uuid(), $1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb), now(), now())
on conflict (provider) do update set
    token = excluded.token,
    properties = excluded.properties,
    updated_at = now();
`
