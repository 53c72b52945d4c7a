package sqlinline

const QCreateKVTable = `--sql 3f2b9c1e-5a7d-4e6b-8c21-9d0e4f6a7b18
create table if not exists studio_kv (
    key text primary key,
    value jsonb not null,
    updated_at timestamptz not null default now()
);
`

const QSelectKV = `--sql 7c4e1a90-2b3d-4f5e-a6c7-1d8e9f0a2b3c
select value
from studio_kv
where key = $1::text
limit 1;
`

const QUpsertKV = `--sql c1d2e3f4-a5b6-4c7d-8e9f-0a1b2c3d4e5f
insert into studio_kv (key, value, updated_at)
values ($1::text, $2::jsonb, now())
on conflict (key) do update set
    value = excluded.value,
    updated_at = now();
`

const QDeleteKV = `--sql 9e8d7c6b-5a4f-4e3d-b2c1-0f9e8d7c6b5a
delete from studio_kv
where key = $1::text;
`
