package criteria

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateBuilder_Errors(t *testing.T) {
	users := userSchema()
	accounts := buildTemplate(t, NewTemplateBuilder(accountSchema()))

	testCases := []struct {
		name  string
		build func(b *TemplateBuilder) *TemplateBuilder
		code  ErrorCode
	}{
		{
			name:  "reserved name",
			build: func(b *TemplateBuilder) *TemplateBuilder { return b.Where("$0", "status", OpEQ) },
			code:  ErrCodeReservedName,
		},
		{
			name: "duplicate name",
			build: func(b *TemplateBuilder) *TemplateBuilder {
				return b.Where("status", "status", OpEQ).And("status", "role", OpEQ)
			},
			code: ErrCodeDuplicateName,
		},
		{
			name:  "empty name",
			build: func(b *TemplateBuilder) *TemplateBuilder { return b.Where("", "status", OpEQ) },
			code:  ErrCodeInvalidCondition,
		},
		{
			name:  "unknown field",
			build: func(b *TemplateBuilder) *TemplateBuilder { return b.Where("x", "shoeSize", OpEQ) },
			code:  ErrCodeUnknownField,
		},
		{
			name:  "invalid operator",
			build: func(b *TemplateBuilder) *TemplateBuilder { return b.Where("x", "status", Op(99)) },
			code:  ErrCodeInvalidCondition,
		},
		{
			name:  "unknown select field",
			build: func(b *TemplateBuilder) *TemplateBuilder { return b.Select(FuncMax, "shoeSize") },
			code:  ErrCodeUnknownField,
		},
		{
			name: "unknown join local field",
			build: func(b *TemplateBuilder) *TemplateBuilder {
				return b.Join("account", accounts, "shoeSize", "id", JoinInner)
			},
			code: ErrCodeUnknownField,
		},
		{
			name: "unknown join remote field",
			build: func(b *TemplateBuilder) *TemplateBuilder {
				return b.Join("account", accounts, "accountId", "owner", JoinInner)
			},
			code: ErrCodeUnknownField,
		},
		{
			name: "duplicate join",
			build: func(b *TemplateBuilder) *TemplateBuilder {
				return b.Join("account", accounts, "accountId", "id", JoinInner).
					Join("account", accounts, "accountId", "id", JoinLeft)
			},
			code: ErrCodeDuplicateName,
		},
		{
			name: "nil join template",
			build: func(b *TemplateBuilder) *TemplateBuilder {
				return b.Join("account", nil, "accountId", "id", JoinInner)
			},
			code: ErrCodeUnknownJoin,
		},
		{
			name:  "having without group-by",
			build: func(b *TemplateBuilder) *TemplateBuilder { return b.Having(FuncCount, "", OpGT) },
			code:  ErrCodeNoGroupBy,
		},
		{
			name: "having with sub-criteria",
			build: func(b *TemplateBuilder) *TemplateBuilder {
				return b.GroupBy("status").Having(FuncCount, "", OpSC)
			},
			code: ErrCodeInvalidCondition,
		},
		{
			name:  "unknown group-by field",
			build: func(b *TemplateBuilder) *TemplateBuilder { return b.GroupBy("shoeSize") },
			code:  ErrCodeUnknownField,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tmpl, err := tc.build(NewTemplateBuilder(users)).Done()
			require.Error(t, err)
			assert.Nil(t, tmpl)
			assert.Equal(t, tc.code, Code(err))
		})
	}
}

func TestTemplateBuilder_CollectsAllErrors(t *testing.T) {
	_, err := NewTemplateBuilder(userSchema()).
		Where("a", "shoeSize", OpEQ).
		And("$1", "status", OpEQ).
		Done()
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(ErrCodeUnknownField))
	assert.Contains(t, err.Error(), string(ErrCodeReservedName))
}

func TestTemplateBuilder_SelectTypeDefaults(t *testing.T) {
	users := userSchema()

	plain := buildTemplate(t, NewTemplateBuilder(users))
	assert.Equal(t, SelectEntity, plain.New().SelectType())

	projected := buildTemplate(t, NewTemplateBuilder(users).Select(FuncNative, "name"))
	assert.Equal(t, SelectFields, projected.New().SelectType())

	explicit := buildTemplate(t, NewTemplateBuilder(users).
		Select(FuncCount, "").
		SelectType(SelectSingle))
	assert.Equal(t, SelectSingle, explicit.New().SelectType())
}

func TestTemplate_Accessors(t *testing.T) {
	accounts := buildTemplate(t, NewTemplateBuilder(accountSchema()))
	tmpl := buildTemplate(t, NewTemplateBuilder(userSchema()).
		Named("ActiveUsers").
		Where("status", "status", OpEQ).
		AndSub("group").
		Join("account", accounts, "accountId", "id", JoinInner))

	assert.Equal(t, "ActiveUsers", tmpl.Name())
	assert.Equal(t, "users", tmpl.Registry().Table())
	assert.Equal(t, []string{"account"}, tmpl.JoinNames())

	conds := tmpl.Conditions()
	require.Len(t, conds, 2)
	assert.True(t, conds[0].Is("status"))
	assert.Equal(t, OpSC, conds[1].Op)
	assert.Nil(t, conds[1].Attr)
}

func TestTemplate_SharedAcrossInstances(t *testing.T) {
	tmpl := buildTemplate(t, NewTemplateBuilder(userSchema()).Where("status", "status", OpEQ))

	a := tmpl.New()
	require.NoError(t, a.AddAnd("age", OpGT, 1))

	assert.Len(t, tmpl.Conditions(), 1)
	assert.Same(t, a.Conditions()[0], tmpl.New().Conditions()[0])
}

func TestSchema(t *testing.T) {
	s := NewSchema("Host", "host", map[string]string{
		"name":    "",
		"address": "private_ip_address",
	})

	assert.Equal(t, "Host", s.Name())
	assert.Equal(t, "host", s.Table())
	assert.Equal(t, []string{"address", "name"}, s.Fields())

	a, ok := s.Attribute("name")
	require.True(t, ok)
	assert.Equal(t, "host.name", a.Qualified())
	assert.Equal(t, "host.private_ip_address", s.MustAttribute("address").Qualified())

	_, ok = s.Attribute("missing")
	assert.False(t, ok)
	assert.Panics(t, func() { s.MustAttribute("missing") })
}
